package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/clients"
	"github.com/danghoa77/e-project-be-sub000/internal/order/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/order/repository"
	"github.com/danghoa77/e-project-be-sub000/internal/order/service"
	productdomain "github.com/danghoa77/e-project-be-sub000/internal/product/domain"
	"go.uber.org/zap"
)

const (
	defaultTick      = time.Second
	defaultBatchSize = 100
	maxAttempts      = 10
)

type decrementPayload struct {
	OrderID string                    `json:"order_id"`
	Items   []productdomain.StockLine `json:"items"`
}

// Poller drains the order outbox: stock-decrement intents are retried
// against the product service until confirmed or exhausted, and order
// lifecycle events are published to the broker. Together with the
// transactional insert this closes the window between order commit and
// stock decrement.
type Poller struct {
	tick      time.Duration
	batchSize int
	repo      repository.OrderRepository
	products  service.ProductGateway
	publisher EventPublisher
	logger    *zap.Logger
}

func NewPoller(
	repo repository.OrderRepository,
	products service.ProductGateway,
	publisher EventPublisher,
	logger *zap.Logger,
) *Poller {
	return &Poller{
		tick:      defaultTick,
		batchSize: defaultBatchSize,
		repo:      repo,
		products:  products,
		publisher: publisher,
		logger:    logger,
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) drain(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("outbox_fetch_failed", zap.Error(err))
		return
	}

	for _, event := range events {
		switch event.EventType {
		case repository.EventDecrementStock:
			p.dispatchDecrement(ctx, event)
		default:
			p.publishEvent(ctx, event)
		}
	}
}

func (p *Poller) dispatchDecrement(ctx context.Context, event *repository.OutboxEvent) {
	var payload decrementPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		p.logger.Error("outbox_payload_invalid", zap.String("event_id", event.ID), zap.Error(err))
		p.abandon(ctx, event, "invalid payload: "+err.Error())
		return
	}

	err := p.products.DecreaseStock(ctx, payload.OrderID, payload.Items)
	if err == nil {
		if errMark := p.repo.MarkEventProcessed(ctx, event.ID); errMark != nil {
			p.logger.Error("outbox_mark_failed", zap.String("event_id", event.ID), zap.Error(errMark))
		}
		p.logger.Info("outbox_decrement_confirmed", zap.String("order_id", payload.OrderID))
		return
	}

	// A failed precondition will never succeed on retry: the order was
	// admitted but the units are gone. Flag the order instead of
	// spinning on the ledger.
	if errors.Is(err, clients.ErrInsufficientStock) {
		p.logger.Error("outbox_decrement_rejected",
			zap.String("order_id", payload.OrderID),
			zap.Error(err),
		)
		p.abandon(ctx, event, err.Error())
		p.cancelOrder(ctx, payload.OrderID)
		return
	}

	if event.Attempts+1 >= maxAttempts {
		p.logger.Error("outbox_decrement_exhausted",
			zap.String("order_id", payload.OrderID),
			zap.Int("attempts", event.Attempts+1),
			zap.Error(err),
		)
		p.abandon(ctx, event, err.Error())
		p.cancelOrder(ctx, payload.OrderID)
		return
	}

	p.logger.Warn("outbox_decrement_retry",
		zap.String("order_id", payload.OrderID),
		zap.Int("attempts", event.Attempts+1),
		zap.Error(err),
	)
	if errMark := p.repo.MarkEventFailed(ctx, event.ID, err.Error()); errMark != nil {
		p.logger.Error("outbox_mark_failed", zap.String("event_id", event.ID), zap.Error(errMark))
	}
}

func (p *Poller) publishEvent(ctx context.Context, event *repository.OutboxEvent) {
	if err := p.publisher.Publish(ctx, event.AggregateID, event.EventType, event.Payload); err != nil {
		p.logger.Warn("outbox_publish_failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		if errMark := p.repo.MarkEventFailed(ctx, event.ID, err.Error()); errMark != nil {
			p.logger.Error("outbox_mark_failed", zap.String("event_id", event.ID), zap.Error(errMark))
		}
		return
	}

	if err := p.repo.MarkEventProcessed(ctx, event.ID); err != nil {
		p.logger.Error("outbox_mark_failed", zap.String("event_id", event.ID), zap.Error(err))
	}
}

func (p *Poller) abandon(ctx context.Context, event *repository.OutboxEvent, reason string) {
	if err := p.repo.AbandonEvent(ctx, event.ID, reason); err != nil {
		p.logger.Error("outbox_abandon_failed", zap.String("event_id", event.ID), zap.Error(err))
	}
}

// cancelOrder flags an order whose stock could not be secured. Only a
// still-pending order is moved; anything further along is left for
// operator review.
func (p *Poller) cancelOrder(ctx context.Context, orderID string) {
	applied, err := p.repo.UpdateStatus(ctx, orderID,
		[]domain.Status{domain.StatusPending}, domain.StatusCancelled, nil)
	if err != nil {
		p.logger.Error("outbox_cancel_order_failed", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if !applied {
		p.logger.Error("outbox_order_needs_review",
			zap.String("order_id", orderID),
			zap.String("reason", "stock decrement abandoned but order is no longer pending"),
		)
		return
	}
	p.logger.Warn("outbox_order_cancelled", zap.String("order_id", orderID))
}
