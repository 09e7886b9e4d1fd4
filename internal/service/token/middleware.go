package token

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ContextUserID and ContextRole are the echo context keys the middleware
// fills in for downstream handlers.
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

func CreateCookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Require authenticates the request and, when roles are given, enforces
// that the caller holds one of them. An expired access token is
// transparently refreshed from the refresh cookie, rotating both
// cookies.
func (t *Service) Require(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, rotated, newAccess, newRefresh, err := t.authenticate(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			role, _ := claims[ContextRole].(string)
			if len(roles) > 0 && !roleAllowed(role, roles) {
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}

			if rotated {
				c.SetCookie(CreateCookie("accessToken", newAccess, "/", time.Now().Add(AccessTTL)))
				c.SetCookie(CreateCookie("refreshToken", newRefresh, "/", time.Now().Add(RefreshTTL)))
			}

			c.Set(ContextUserID, uint(claims["sub"].(float64)))
			c.Set(ContextRole, role)
			return next(c)
		}
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func (t *Service) authenticate(c echo.Context) (claims jwt.MapClaims, rotated bool, access, refresh string, err error) {
	raw := bearerToken(c)
	if raw == "" {
		if cookie, cerr := c.Cookie("accessToken"); cerr == nil {
			raw = cookie.Value
		}
	}

	if raw != "" {
		tok, perr := jwt.Parse(raw, func(tok *jwt.Token) (interface{}, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, echo.NewHTTPError(http.StatusUnauthorized, "unexpected signing method")
			}
			return t.JWTSecret, nil
		})
		if perr == nil && tok.Valid {
			if mc, ok := tok.Claims.(jwt.MapClaims); ok {
				return mc, false, "", "", nil
			}
		}
		// fall through to refresh only on expiry
	}

	rfCookie, cerr := c.Cookie("refreshToken")
	if cerr != nil {
		return nil, false, "", "", cerr
	}

	access, refresh, claims, err = t.Rotate(rfCookie.Value)
	if err != nil {
		return nil, false, "", "", err
	}
	return claims, true, access, refresh, nil
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
