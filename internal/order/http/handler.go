package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/clients"
	"github.com/danghoa77/e-project-be-sub000/internal/httpapi"
	"github.com/danghoa77/e-project-be-sub000/internal/order/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/order/repository"
	"github.com/danghoa77/e-project-be-sub000/internal/order/service"
	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	checkout *service.CheckoutService
	orders   *service.OrderService
	timeout  time.Duration
}

func NewOrderHandler(checkout *service.CheckoutService, orders *service.OrderService, timeout time.Duration) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders, timeout: timeout}
}

func (h *OrderHandler) Register(r chi.Router) {
	r.Post("/users/{user_id}/checkout", h.Checkout)
	r.Get("/users/{user_id}/orders", h.ListOrders)
	r.Get("/orders/{order_id}", h.GetOrder)
	r.Post("/orders/{order_id}/paid", h.OrderPaid)
	r.Patch("/orders/{order_id}/status", h.UpdateStatus)
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ShippingAddress == "" {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_address", "shipping_address is required")
		return
	}

	order, err := h.checkout.CreateOrder(ctx, chi.URLParam(r, "user_id"), req.ShippingAddress)
	if err != nil {
		// The order exists; the stock decrement is still being retried.
		// Accepted-but-incomplete, not an internal error.
		if errors.Is(err, service.ErrStockDecrementPending) && order != nil {
			httpapi.RespondJSON(w, http.StatusAccepted, order)
			return
		}
		h.respondCheckoutError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var q repository.ListQuery
	q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.orders.ListOrders(ctx, chi.URLParam(r, "user_id"), q)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, orders)
}

type orderPaidRequest struct {
	Method string `json:"method"`
}

func (h *OrderHandler) OrderPaid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req orderPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.MarkPaid(ctx, chi.URLParam(r, "order_id"), req.Method)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.Status `json:"status"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "order_id"), req.Status)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) respondCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		httpapi.RespondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, clients.ErrProductNotFound),
		errors.Is(err, clients.ErrVariantNotFound),
		errors.Is(err, clients.ErrSizeNotFound):
		httpapi.RespondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, clients.ErrInsufficientStock):
		httpapi.RespondError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, clients.ErrUpstreamUnavailable):
		httpapi.RespondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	default:
		httpapi.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *OrderHandler) respondOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		httpapi.RespondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		httpapi.RespondError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		httpapi.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
