package handlers

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/mekonnend/ourlocalmarket/internal/service/search"
	"github.com/mekonnend/ourlocalmarket/internal/util"
)

type SearchHandler struct {
	ES         *elasticsearch.Client
	Index      string
	Production bool
}

// Search serves full-text product search from the Elasticsearch index.
func (h *SearchHandler) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return fail(c, http.StatusBadRequest, "query parameter q is required")
	}
	if h.ES == nil {
		return fail(c, http.StatusServiceUnavailable, "search is not available")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	from, limit := util.Calculate(page, limit)

	total, products, err := search.Search(c.Request().Context(), h.ES, h.Index, query, from, limit)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	return respond(c, http.StatusOK, echo.Map{
		"products":   products,
		"pagination": pageMeta(page, limit, len(products), total),
	})
}
