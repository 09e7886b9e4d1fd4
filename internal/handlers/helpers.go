package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/events"
	"github.com/mekonnend/ourlocalmarket/internal/logging"
	"github.com/mekonnend/ourlocalmarket/internal/policy"
	"github.com/mekonnend/ourlocalmarket/internal/service/token"
)

func principalFrom(c echo.Context) (policy.Principal, error) {
	id, ok := c.Get(token.ContextUserID).(uint)
	role, ok2 := c.Get(token.ContextRole).(string)
	if !ok || !ok2 {
		return policy.Principal{}, fmt.Errorf("%w: missing session", domain.ErrUnauthorized)
	}
	return policy.Principal{ID: id, Role: role}, nil
}

func parseUintParam(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrValidation, name)
	}
	return uint(v), nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	return nil
}

func pageMeta(page, limit int, count int, total int64) echo.Map {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return echo.Map{
		"count":        count,
		"total":        total,
		"pages":        pages,
		"current_page": page,
	}
}

// publish is fire-and-forget: a dead broker must never fail a request.
func publish(c echo.Context, p *events.Producer, topic string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	key, _ := event["type"].(string)
	if err := p.Publish(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed",
			"topic", topic, "error", err)
	}
}
