package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/httpapi"
	"github.com/danghoa77/e-project-be-sub000/internal/payment/provider"
	"github.com/danghoa77/e-project-be-sub000/internal/payment/repository"
	"github.com/danghoa77/e-project-be-sub000/internal/payment/service"
	"github.com/go-chi/chi/v5"
)

type PaymentHandler struct {
	service *service.PaymentService
	timeout time.Duration
}

func NewPaymentHandler(svc *service.PaymentService, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{service: svc, timeout: timeout}
}

func (h *PaymentHandler) Register(r chi.Router) {
	r.Post("/payments", h.CreatePaymentURL)
	// Provider callbacks. VNPAY redirects the browser (GET), MoMo
	// delivers a server-side IPN (POST); both carry the payload as
	// query/form parameters.
	r.Get("/payments/vnpay/return", h.callback(provider.VNPayName))
	r.Post("/payments/momo/ipn", h.callback(provider.MoMoName))
	r.Get("/payments/{order_id}", h.GetPayment)
	r.Post("/payments/{order_id}/cancel", h.Cancel)
}

type createPaymentRequest struct {
	UserID   string `json:"user_id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Provider string `json:"provider"`
}

func (h *PaymentHandler) CreatePaymentURL(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.UserID == "" || req.OrderID == "" {
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "user_id and order_id are required")
		return
	}

	redirectURL, err := h.service.CreatePaymentURL(ctx, req.UserID, req.OrderID, req.Amount, req.Provider, clientIP(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusCreated, map[string]string{"redirect_url": redirectURL})
}

func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payment, err := h.service.GetPayment(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payment, err := h.service.Cancel(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) callback(providerName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		params := r.URL.Query()
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				httpapi.RespondError(w, http.StatusBadRequest, "invalid_request", "malformed form payload")
				return
			}
			params = r.Form
		}

		result, err := h.service.HandleCallback(ctx, providerName, params)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}

		httpapi.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"order_id": result.OrderID,
			"success":  result.Success,
			"code":     result.Code,
		})
	}
}

func (h *PaymentHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		httpapi.RespondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, provider.ErrUnknownProvider):
		httpapi.RespondError(w, http.StatusBadRequest, "unknown_provider", err.Error())
	case errors.Is(err, provider.ErrMalformedCallback):
		httpapi.RespondError(w, http.StatusBadRequest, "malformed_callback", err.Error())
	case errors.Is(err, provider.ErrInvalidSignature):
		httpapi.RespondError(w, http.StatusForbidden, "invalid_signature", err.Error())
	case errors.Is(err, service.ErrPaymentClosed):
		httpapi.RespondError(w, http.StatusConflict, "payment_closed", err.Error())
	case errors.Is(err, repository.ErrPaymentNotFound):
		httpapi.RespondError(w, http.StatusNotFound, "payment_not_found", err.Error())
	default:
		httpapi.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
