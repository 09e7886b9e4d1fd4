package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mekonnend/ourlocalmarket/internal/events"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
	"github.com/mekonnend/ourlocalmarket/internal/service/order"
	"github.com/mekonnend/ourlocalmarket/internal/service/stats"
	"github.com/mekonnend/ourlocalmarket/internal/util"
)

type OrderHandler struct {
	Orders     *order.Service
	Stats      *stats.Service
	Producer   *events.Producer
	Production bool
}

func (h *OrderHandler) Create(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	var in order.CreateInput
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	o, err := h.Orders.Create(c.Request().Context(), p, in)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	publish(c, h.Producer, events.TopicOrderEvents, map[string]any{
		"type":    "order_placed",
		"orderID": o.ID,
		"buyerID": o.BuyerID,
		"total":   o.TotalPrice,
	})
	publish(c, h.Producer, events.TopicNotificationEvents, map[string]any{
		"type":        "order_confirmation",
		"orderID":     o.ID,
		"orderNumber": o.OrderNumber(),
	})

	return respond(c, http.StatusCreated, echo.Map{
		"message":      "Order placed successfully",
		"order":        o,
		"order_number": o.OrderNumber(),
	})
}

func (h *OrderHandler) Get(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	o, err := h.Orders.Get(c.Request().Context(), p, id)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	return respond(c, http.StatusOK, echo.Map{
		"order":        o,
		"order_number": o.OrderNumber(),
	})
}

func (h *OrderHandler) ListBuyer(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	f := orderFilterFrom(c)
	orders, total, err := h.Orders.ListBuyer(c.Request().Context(), p, f)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	return respond(c, http.StatusOK, echo.Map{
		"orders":     orders,
		"pagination": pageMeta(page, f.Limit, len(orders), total),
	})
}

func (h *OrderHandler) ListFarmer(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	f := orderFilterFrom(c)
	orders, total, err := h.Orders.ListFarmer(c.Request().Context(), p, f)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	return respond(c, http.StatusOK, echo.Map{
		"orders":     orders,
		"pagination": pageMeta(page, f.Limit, len(orders), total),
	})
}

func (h *OrderHandler) ListAdmin(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	f := orderFilterFrom(c)
	if v := c.QueryParam("buyer_id"); v != "" {
		f.BuyerID = uint(parseIntDefault(v, 0))
	}
	if v := c.QueryParam("farmer_id"); v != "" {
		f.FarmerID = uint(parseIntDefault(v, 0))
	}

	orders, total, err := h.Orders.ListAdmin(c.Request().Context(), p, f)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	return respond(c, http.StatusOK, echo.Map{
		"orders":     orders,
		"pagination": pageMeta(page, f.Limit, len(orders), total),
	})
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	o, err := h.Orders.UpdateStatus(c.Request().Context(), p, id, req.Status)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	publish(c, h.Producer, events.TopicOrderEvents, map[string]any{
		"type":    "order_status_changed",
		"orderID": o.ID,
		"status":  o.Status,
	})
	publish(c, h.Producer, events.TopicNotificationEvents, map[string]any{
		"type":        "order_status_update",
		"orderID":     o.ID,
		"orderNumber": o.OrderNumber(),
		"status":      o.Status,
	})

	return respond(c, http.StatusOK, echo.Map{
		"message": "Order status updated",
		"order":   o,
	})
}

func (h *OrderHandler) UpdatePaymentStatus(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	var req struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	o, err := h.Orders.UpdatePaymentStatus(c.Request().Context(), p, id, req.PaymentStatus)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	publish(c, h.Producer, events.TopicOrderEvents, map[string]any{
		"type":          "payment_status_changed",
		"orderID":       o.ID,
		"paymentStatus": o.PaymentStatus,
	})

	return respond(c, http.StatusOK, echo.Map{
		"message": "Payment status updated",
		"order":   o,
	})
}

func (h *OrderHandler) FarmerStats(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	st, err := h.Stats.Farmer(c.Request().Context(), p.ID)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	return respond(c, http.StatusOK, echo.Map{"stats": st})
}

func (h *OrderHandler) AdminStats(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	st, err := h.Stats.Admin(c.Request().Context(), p)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	return respond(c, http.StatusOK, echo.Map{"stats": st})
}

func orderFilterFrom(c echo.Context) repo.OrderFilter {
	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	from, limit := util.Calculate(page, limit)

	return repo.OrderFilter{
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("payment_status"),
		StartDate:     parseDate(c.QueryParam("start_date")),
		EndDate:       parseDate(c.QueryParam("end_date")),
		Offset:        from,
		Limit:         limit,
	}
}
