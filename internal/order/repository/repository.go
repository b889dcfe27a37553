package repository

import (
	"context"
	"errors"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/order/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEventNotFound = errors.New("outbox event not found")
)

// Outbox event types drained by the poller.
const (
	EventDecrementStock = "stock.decrement"
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
)

// OutboxEvent is an intended side effect recorded in the same local
// transaction as the write that requires it.
type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	Attempts    int
	CreatedAt   time.Time
}

type ListQuery struct {
	Page  int
	Limit int
}

// OrderRepository owns orders and the outbox. CreateOrder is the only
// true atomic boundary of the checkout saga: the order insert, the
// cart-items delete and the outbox inserts commit or roll back as one
// Postgres transaction.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order, events []OutboxEvent) error
	GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string, q ListQuery) ([]*domain.Order, error)

	// UpdateStatus performs the conditional transition: the row moves to
	// `to` only if its current status is one of `from`. Returns false
	// (not an error) when nothing matched, which callers treat as a
	// duplicate-delivery no-op. Events are inserted in the same
	// transaction as the update.
	UpdateStatus(ctx context.Context, orderID string, from []domain.Status, to domain.Status, events []OutboxEvent) (bool, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
	MarkEventFailed(ctx context.Context, eventID string, reason string) error
	AbandonEvent(ctx context.Context, eventID string, reason string) error
	Close() error
}
