package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/logging"
)

// respond writes the standard success envelope.
func respond(c echo.Context, code int, payload echo.Map) error {
	if payload == nil {
		payload = echo.Map{}
	}
	payload["success"] = true
	return c.JSON(code, payload)
}

func fail(c echo.Context, code int, message string) error {
	return c.JSON(code, echo.Map{"success": false, "message": message})
}

var sentinels = []error{
	domain.ErrValidation,
	domain.ErrInsufficientStock,
	domain.ErrUnauthorized,
	domain.ErrForbidden,
	domain.ErrNotFound,
	domain.ErrConflict,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errMessage strips the taxonomy prefix so clients see the actionable
// part only.
func errMessage(err error) string {
	msg := err.Error()
	for _, s := range sentinels {
		if p := s.Error() + ": "; strings.HasPrefix(msg, p) {
			return strings.TrimPrefix(msg, p)
		}
	}
	return msg
}

// writeError maps a domain failure onto the HTTP envelope. Internal
// causes are logged and, in production, replaced by a generic message.
func writeError(c echo.Context, err error, production bool) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("internal error",
			"path", c.Path(), "error", err)
		if production {
			return fail(c, code, "Server error")
		}
		return fail(c, code, err.Error())
	}
	return fail(c, code, errMessage(err))
}
