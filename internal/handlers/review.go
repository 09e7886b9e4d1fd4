package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mekonnend/ourlocalmarket/internal/events"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
	"github.com/mekonnend/ourlocalmarket/internal/service/review"
	"github.com/mekonnend/ourlocalmarket/internal/util"
)

type ReviewHandler struct {
	Reviews    *review.Service
	Producer   *events.Producer
	Production bool
}

func (h *ReviewHandler) Add(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	var in review.AddInput
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	rv, err := h.Reviews.Add(c.Request().Context(), p, in)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	publish(c, h.Producer, events.TopicReviewEvents, map[string]any{
		"type":      "review_added",
		"reviewID":  rv.ID,
		"productID": rv.ProductID,
		"rating":    rv.Rating,
	})

	return respond(c, http.StatusCreated, echo.Map{
		"message": "Review added successfully",
		"review":  rv,
	})
}

// ListByProduct is public; it serves active reviews with the rating
// distribution and verified-purchase stats.
func (h *ReviewHandler) ListByProduct(c echo.Context) error {
	productID, err := parseUintParam(c, "productId")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	from, limit := util.Calculate(page, limit)

	f := repo.ReviewFilter{
		ProductID: productID,
		Rating:    parseIntDefault(c.QueryParam("rating"), 0),
		SortBy:    c.QueryParam("sort_by"),
		Offset:    from,
		Limit:     limit,
	}

	reviews, total, stats, err := h.Reviews.ListByProduct(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	return respond(c, http.StatusOK, echo.Map{
		"reviews":    reviews,
		"stats":      stats,
		"pagination": pageMeta(page, limit, len(reviews), total),
	})
}

func (h *ReviewHandler) Update(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	var in review.UpdateInput
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	rv, err := h.Reviews.Update(c.Request().Context(), p, id, in)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	return respond(c, http.StatusOK, echo.Map{
		"message": "Review updated successfully",
		"review":  rv,
	})
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	if err := h.Reviews.Delete(c.Request().Context(), p, id); err != nil {
		return writeError(c, err, h.Production)
	}

	publish(c, h.Producer, events.TopicReviewEvents, map[string]any{
		"type":     "review_deleted",
		"reviewID": id,
	})

	return respond(c, http.StatusOK, echo.Map{"message": "Review deleted successfully"})
}

func (h *ReviewHandler) MarkHelpful(c echo.Context) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	count, err := h.Reviews.MarkHelpful(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	return respond(c, http.StatusOK, echo.Map{
		"message":       "Marked as helpful",
		"helpful_count": count,
	})
}

func (h *ReviewHandler) Report(c echo.Context) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	if err := h.Reviews.Report(c.Request().Context(), id); err != nil {
		return writeError(c, err, h.Production)
	}

	return respond(c, http.StatusOK, echo.Map{"message": "Review reported"})
}

func (h *ReviewHandler) ListAdmin(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	from, limit := util.Calculate(page, limit)

	f := repo.ReviewFilter{
		ProductID: uint(parseIntDefault(c.QueryParam("product_id"), 0)),
		UserID:    uint(parseIntDefault(c.QueryParam("user_id"), 0)),
		Reported:  c.QueryParam("reported") == "true",
		Offset:    from,
		Limit:     limit,
	}
	if v := c.QueryParam("active"); v != "" {
		active := v == "true"
		f.Active = &active
	}

	reviews, total, err := h.Reviews.ListAdmin(c.Request().Context(), p, f)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	return respond(c, http.StatusOK, echo.Map{
		"reviews":    reviews,
		"pagination": pageMeta(page, limit, len(reviews), total),
	})
}
