package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/mekonnend/ourlocalmarket/internal/events"
	"github.com/mekonnend/ourlocalmarket/internal/logging"
	"github.com/mekonnend/ourlocalmarket/internal/models"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
	"github.com/mekonnend/ourlocalmarket/internal/service/catalog"
	"github.com/mekonnend/ourlocalmarket/internal/service/search"
	"github.com/mekonnend/ourlocalmarket/internal/service/stats"
	"github.com/mekonnend/ourlocalmarket/internal/util"
)

type ProductHandler struct {
	Catalog    *catalog.Service
	Stats      *stats.Service
	Producer   *events.Producer
	ES         *elasticsearch.Client
	ESIndex    string
	UploadDir  string
	Production bool
}

type productForm struct {
	catalog.CreateInput
	ImageData string `json:"image_data"`
}

// Create accepts either multipart form data with an "image" file or a
// JSON body carrying base64 image_data.
func (h *ProductHandler) Create(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	var form productForm
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form.Name = c.FormValue("name")
		form.Description = c.FormValue("description")
		form.Price, _ = strconv.ParseFloat(c.FormValue("price"), 64)
		form.Unit = c.FormValue("unit")
		form.Category = c.FormValue("category")
		form.Stock = parseIntDefault(c.FormValue("stock"), 0)
		if file, ferr := c.FormFile("image"); ferr == nil {
			url, uerr := saveUploadedImage(h.UploadDir, file)
			if uerr != nil {
				return writeError(c, uerr, h.Production)
			}
			form.Image = url
		}
	} else {
		if err := c.Bind(&form); err != nil {
			return fail(c, http.StatusBadRequest, "invalid body")
		}
		if form.ImageData != "" {
			url, uerr := saveBase64Image(h.UploadDir, form.ImageData)
			if uerr != nil {
				return writeError(c, uerr, h.Production)
			}
			form.Image = url
		}
	}
	if form.Image == "" {
		form.Image = defaultImageFor(form.Category)
	}

	product, err := h.Catalog.Create(c.Request().Context(), p, form.CreateInput)
	if err != nil {
		removeLocalImage(h.UploadDir, form.Image)
		return writeError(c, err, h.Production)
	}

	h.syncIndex(c, product)
	publish(c, h.Producer, events.TopicProductEvents, map[string]any{
		"type":      "product_created",
		"productID": product.ID,
		"farmerID":  product.FarmerID,
	})

	return respond(c, http.StatusCreated, echo.Map{
		"message": "Product created successfully",
		"product": product,
	})
}

func (h *ProductHandler) Get(c echo.Context) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}
	product, err := h.Catalog.Get(c.Request().Context(), id, true)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	return respond(c, http.StatusOK, echo.Map{"product": product})
}

func (h *ProductHandler) Update(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	var in struct {
		catalog.UpdateInput
		ImageData string `json:"image_data"`
	}
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		bindUpdateForm(c, &in.UpdateInput)
		if file, ferr := c.FormFile("image"); ferr == nil {
			url, uerr := saveUploadedImage(h.UploadDir, file)
			if uerr != nil {
				return writeError(c, uerr, h.Production)
			}
			in.Image = &url
		}
	} else {
		if err := c.Bind(&in); err != nil {
			return fail(c, http.StatusBadRequest, "invalid body")
		}
		if in.ImageData != "" {
			url, uerr := saveBase64Image(h.UploadDir, in.ImageData)
			if uerr != nil {
				return writeError(c, uerr, h.Production)
			}
			in.Image = &url
		}
	}

	var oldImage string
	if in.Image != nil {
		if prev, perr := h.Catalog.Get(c.Request().Context(), id, false); perr == nil {
			oldImage = prev.Image
		}
	}

	product, err := h.Catalog.Update(c.Request().Context(), p, id, in.UpdateInput)
	if err != nil {
		if in.Image != nil {
			removeLocalImage(h.UploadDir, *in.Image)
		}
		return writeError(c, err, h.Production)
	}
	if oldImage != "" && oldImage != product.Image {
		removeLocalImage(h.UploadDir, oldImage)
	}

	h.syncIndex(c, product)
	publish(c, h.Producer, events.TopicProductEvents, map[string]any{
		"type":      "product_updated",
		"productID": product.ID,
	})

	return respond(c, http.StatusOK, echo.Map{
		"message": "Product updated successfully",
		"product": product,
	})
}

func (h *ProductHandler) Delete(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return writeError(c, err, h.Production)
	}

	product, err := h.Catalog.Delete(c.Request().Context(), p, id)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	removeLocalImage(h.UploadDir, product.Image)

	h.dropIndex(c, id)
	publish(c, h.Producer, events.TopicProductEvents, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return respond(c, http.StatusOK, echo.Map{"message": "Product deleted successfully"})
}

// List is the public storefront listing with facets.
func (h *ProductHandler) List(c echo.Context) error {
	f := productFilterFrom(c)

	result, err := h.Catalog.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	return respond(c, http.StatusOK, echo.Map{
		"products":   result.Products,
		"categories": result.Categories,
		"priceRange": result.PriceRange,
		"pagination": pageMeta(page, f.Limit, len(result.Products), result.Total),
	})
}

func (h *ProductHandler) ListFarmer(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	f := productFilterFrom(c)
	products, total, err := h.Catalog.ListFarmer(c.Request().Context(), p.ID, f)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	return respond(c, http.StatusOK, echo.Map{
		"products":   products,
		"pagination": pageMeta(page, f.Limit, len(products), total),
	})
}

func (h *ProductHandler) FarmerInventory(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	inv, err := h.Stats.Inventory(c.Request().Context(), p.ID)
	if err != nil {
		return writeError(c, err, h.Production)
	}
	return respond(c, http.StatusOK, echo.Map{"stats": inv})
}

func (h *ProductHandler) ListAdmin(c echo.Context) error {
	f := productFilterFrom(c)
	f.Status = c.QueryParam("status")

	products, total, err := h.Catalog.ListAdmin(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	return respond(c, http.StatusOK, echo.Map{
		"products":   products,
		"pagination": pageMeta(page, f.Limit, len(products), total),
	})
}

func (h *ProductHandler) Moderate(c echo.Context) error {
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
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	product, err := h.Catalog.Moderate(c.Request().Context(), p, id, req.Status, req.Reason)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	h.syncIndex(c, product)
	publish(c, h.Producer, events.TopicProductEvents, map[string]any{
		"type":      "product_moderated",
		"productID": product.ID,
		"status":    product.AdminStatus,
	})

	return respond(c, http.StatusOK, echo.Map{
		"message": "Product status updated",
		"product": product,
	})
}

// AdminDelete removes a product regardless of owner; the policy layer
// grants product.delete to admins.
func (h *ProductHandler) AdminDelete(c echo.Context) error {
	return h.Delete(c)
}

// bindUpdateForm reads only the form fields that were actually sent, so
// a multipart update behaves like a JSON patch.
func bindUpdateForm(c echo.Context, in *catalog.UpdateInput) {
	if v := c.FormValue("name"); v != "" {
		in.Name = &v
	}
	if v := c.FormValue("description"); v != "" {
		in.Description = &v
	}
	if v := c.FormValue("price"); v != "" {
		if price, err := strconv.ParseFloat(v, 64); err == nil {
			in.Price = &price
		}
	}
	if v := c.FormValue("unit"); v != "" {
		in.Unit = &v
	}
	if v := c.FormValue("category"); v != "" {
		in.Category = &v
	}
	if v := c.FormValue("stock"); v != "" {
		if stock, err := strconv.Atoi(v); err == nil {
			in.Stock = &stock
		}
	}
	if v := c.FormValue("is_active"); v != "" {
		active := v == "true"
		in.IsActive = &active
	}
}

func productFilterFrom(c echo.Context) repo.ProductFilter {
	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	from, limit := util.Calculate(page, limit)

	f := repo.ProductFilter{
		Search:    c.QueryParam("search"),
		SortBy:    c.QueryParam("sort_by"),
		SortOrder: c.QueryParam("sort_order"),
		Offset:    from,
		Limit:     limit,
	}
	if cats := c.QueryParam("category"); cats != "" {
		f.Categories = strings.Split(cats, ",")
	}
	if v := c.QueryParam("min_price"); v != "" {
		f.MinPrice, _ = strconv.ParseFloat(v, 64)
	}
	if v := c.QueryParam("max_price"); v != "" {
		f.MaxPrice, _ = strconv.ParseFloat(v, 64)
	}
	return f
}

// syncIndex mirrors the product into Elasticsearch; indexing failures
// are logged, never surfaced.
func (h *ProductHandler) syncIndex(c echo.Context, p *models.Product) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexProduct(ctx, h.ES, h.ESIndex, p); err != nil {
		logging.FromContext(c.Request().Context()).Error("es index failed",
			"productID", p.ID, "error", err)
	}
}

func (h *ProductHandler) dropIndex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.DeleteProduct(ctx, h.ES, h.ESIndex, id); err != nil {
		logging.FromContext(c.Request().Context()).Error("es delete failed",
			"productID", id, "error", err)
	}
}
