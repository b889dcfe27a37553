package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cart/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/cart/repository"
	"github.com/danghoa77/e-project-be-sub000/internal/cart/service"
	"github.com/danghoa77/e-project-be-sub000/internal/httpapi"
	"github.com/go-chi/chi/v5"
)

const maxItemQuantity = 99

type CartHandler struct {
	service *service.CartService
	timeout time.Duration
}

func NewCartHandler(svc *service.CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{service: svc, timeout: timeout}
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/users/{user_id}/cart", h.GetCart)
	r.Post("/users/{user_id}/cart/items", h.AddItem)
	r.Put("/users/{user_id}/cart/items", h.UpdateQuantity)
	r.Delete("/users/{user_id}/cart/items", h.RemoveItem)
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	SizeID    string `json:"size_id"`
	Quantity  int    `json:"quantity"`
}

func (req *cartItemRequest) validate() (code, message string, ok bool) {
	if req.ProductID == "" || req.VariantID == "" || req.SizeID == "" {
		return "invalid_item", "product_id, variant_id and size_id are required", false
	}
	if req.Quantity < 1 || req.Quantity > maxItemQuantity {
		return "invalid_quantity", "quantity must be between 1 and 99", false
	}
	return "", "", true
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.service.GetCart(ctx, chi.URLParam(r, "user_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if code, message, ok := req.validate(); !ok {
		httpapi.RespondError(w, http.StatusBadRequest, code, message)
		return
	}

	err := h.service.AddItem(ctx, chi.URLParam(r, "user_id"), domain.CartItem{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		SizeID:    req.SizeID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if code, message, ok := req.validate(); !ok {
		httpapi.RespondError(w, http.StatusBadRequest, code, message)
		return
	}

	err := h.service.UpdateQuantity(ctx, chi.URLParam(r, "user_id"), req.ProductID, req.VariantID, req.SizeID, req.Quantity)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" || req.VariantID == "" || req.SizeID == "" {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_item", "product_id, variant_id and size_id are required")
		return
	}

	err := h.service.RemoveItem(ctx, chi.URLParam(r, "user_id"), req.ProductID, req.VariantID, req.SizeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, repository.ErrItemNotFound):
		httpapi.RespondError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, repository.ErrCartNotFound):
		httpapi.RespondError(w, http.StatusNotFound, "cart_not_found", err.Error())
	default:
		httpapi.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
