package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/payment/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/payment/provider"
	"github.com/danghoa77/e-project-be-sub000/internal/payment/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrPaymentClosed rejects a redirect-URL request for an order whose
	// payment already reached a terminal state.
	ErrPaymentClosed = errors.New("payment session already closed")
)

var callbackTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Provider callbacks by provider and outcome.",
	},
	[]string{"provider", "outcome"},
)

// OrderNotifier is the order service's finalization interface.
type OrderNotifier interface {
	NotifyOrderPaid(ctx context.Context, orderID, method string) error
}

type PaymentService struct {
	repo      repository.PaymentRepository
	providers *provider.Registry
	orders    OrderNotifier
	logger    *zap.Logger
}

func NewPaymentService(
	repo repository.PaymentRepository,
	providers *provider.Registry,
	orders OrderNotifier,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		repo:      repo,
		providers: providers,
		orders:    orders,
		logger:    logger,
	}
}

// CreatePaymentURL opens (or refreshes) the order's payment session and
// returns the provider redirect URL.
func (s *PaymentService) CreatePaymentURL(ctx context.Context, userID, orderID string, amount int64, providerName, clientIP string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	p, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}

	// A settled or cancelled session must never hand out a live gateway
	// URL again; only a missing or still-pending row may proceed.
	existing, err := s.repo.GetByOrderID(ctx, orderID)
	switch {
	case errors.Is(err, repository.ErrPaymentNotFound):
	case err != nil:
		return "", err
	case existing.Status != domain.StatusPending:
		return "", fmt.Errorf("%w: order %s is %s", ErrPaymentClosed, orderID, existing.Status)
	}

	redirectURL, err := p.BuildRedirectURL(provider.PaymentRequest{
		OrderID:   orderID,
		Amount:    amount,
		OrderInfo: fmt.Sprintf("Thanh toan don hang %s", orderID),
		ClientIP:  clientIP,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("build redirect url: %w", err)
	}

	err = s.repo.UpsertPending(ctx, &domain.Payment{
		OrderID:  orderID,
		UserID:   userID,
		Amount:   amount,
		Status:   domain.StatusPending,
		Provider: providerName,
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("payment_session_created",
		zap.String("order_id", orderID),
		zap.String("provider", providerName),
		zap.Int64("amount", amount),
	)
	return redirectURL, nil
}

// HandleCallback reconciles one provider delivery. The terminal
// transition happens at most once; a duplicate delivery is acknowledged
// without side effects, so the provider can retry as often as it likes.
func (s *PaymentService) HandleCallback(ctx context.Context, providerName string, params url.Values) (*provider.CallbackResult, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	if err := p.VerifyCallback(params); err != nil {
		callbackTotal.WithLabelValues(providerName, "invalid").Inc()
		return nil, err
	}

	result, err := p.ParseCallback(params)
	if err != nil {
		callbackTotal.WithLabelValues(providerName, "invalid").Inc()
		return nil, err
	}

	if _, err := s.repo.GetByOrderID(ctx, result.OrderID); err != nil {
		callbackTotal.WithLabelValues(providerName, "unknown_order").Inc()
		return nil, err
	}

	to := domain.StatusFailed
	if result.Success {
		to = domain.StatusSuccess
	}

	applied, err := s.repo.Transition(ctx, result.OrderID, to, result.TransactionNo, result.PayDate)
	if err != nil {
		return nil, err
	}
	if !applied {
		callbackTotal.WithLabelValues(providerName, "duplicate").Inc()
		s.logger.Info("payment_callback_duplicate",
			zap.String("order_id", result.OrderID),
			zap.String("provider", providerName),
		)
		return result, nil
	}

	callbackTotal.WithLabelValues(providerName, string(to)).Inc()
	s.logger.Info("payment_reconciled",
		zap.String("order_id", result.OrderID),
		zap.String("provider", providerName),
		zap.String("status", string(to)),
		zap.String("code", result.Code),
	)

	// Best effort: the order side applies this as a conditional
	// transition, so a lost notification is recovered by re-delivery and
	// a duplicated one is a no-op there.
	if result.Success {
		if err := s.orders.NotifyOrderPaid(ctx, result.OrderID, providerName); err != nil {
			s.logger.Error("order_notify_failed",
				zap.String("order_id", result.OrderID),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// Cancel closes a still-pending session at the user's request.
func (s *PaymentService) Cancel(ctx context.Context, orderID string) (*domain.Payment, error) {
	if _, err := s.repo.GetByOrderID(ctx, orderID); err != nil {
		return nil, err
	}

	applied, err := s.repo.Transition(ctx, orderID, domain.StatusCancelled, "", time.Time{})
	if err != nil {
		return nil, err
	}
	if !applied {
		s.logger.Info("payment_cancel_noop", zap.String("order_id", orderID))
	}
	return s.repo.GetByOrderID(ctx, orderID)
}

func (s *PaymentService) GetPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}
