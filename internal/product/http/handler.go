package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/httpapi"
	"github.com/danghoa77/e-project-be-sub000/internal/product/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/product/repository"
	"github.com/danghoa77/e-project-be-sub000/internal/product/service"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	service *service.ProductService
	timeout time.Duration
}

func NewProductHandler(svc *service.ProductService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{service: svc, timeout: timeout}
}

func (h *ProductHandler) Register(r chi.Router) {
	r.Get("/products", h.ListProducts)
	r.Get("/products/{product_id}", h.GetProduct)
	r.Get("/products/{product_id}/variants/{variant_id}", h.GetVariant)
	r.Post("/stock/decrease", h.DecreaseStock)
	r.Patch("/stock", h.AdjustStock)
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	q := repository.ListQuery{Category: r.URL.Query().Get("category")}
	q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	products, err := h.service.ListProducts(ctx, q)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	product, err := h.service.GetProduct(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) GetVariant(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	sizeID := r.URL.Query().Get("size")
	if sizeID == "" {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_size", "size query parameter is required")
		return
	}

	info, err := h.service.GetVariant(ctx, chi.URLParam(r, "product_id"), chi.URLParam(r, "variant_id"), sizeID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, info)
}

type decreaseStockRequest struct {
	OrderID string             `json:"order_id"`
	Items   []domain.StockLine `json:"items"`
}

func (h *ProductHandler) DecreaseStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	var req decreaseStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "items must not be empty")
		return
	}

	if err := h.service.DecreaseStock(ctx, req.OrderID, req.Items); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type adjustStockRequest struct {
	domain.StockLine
	Direction domain.AdjustDirection `json:"direction"`
}

func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := h.service.AdjustStock(ctx, req.StockLine, req.Direction)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *ProductHandler) respondServiceError(w http.ResponseWriter, err error) {
	var lineErr *service.StockLineError
	isLine := errors.As(err, &lineErr)

	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		httpapi.RespondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, repository.ErrVariantNotFound):
		httpapi.RespondError(w, http.StatusNotFound, "variant_not_found", err.Error())
	case errors.Is(err, repository.ErrSizeNotFound):
		httpapi.RespondError(w, http.StatusNotFound, "size_not_found", err.Error())
	case errors.Is(err, repository.ErrInsufficientStock):
		httpapi.RespondError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case isLine:
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_stock_line", err.Error())
	default:
		httpapi.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
