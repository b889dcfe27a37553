package repository

import (
	"context"
	"errors"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/payment/domain"
)

var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRepository owns payment rows. Transition is the idempotency
// primitive: it moves a payment out of PENDING at most once.
type PaymentRepository interface {
	UpsertPending(ctx context.Context, payment *domain.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)

	// Transition applies PENDING -> to conditionally. Returns false when
	// the payment is already terminal, which callers treat as a
	// duplicate delivery.
	Transition(ctx context.Context, orderID string, to domain.Status, transactionNo string, payDate time.Time) (bool, error)
	Close() error
}
