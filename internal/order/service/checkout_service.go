package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cache"
	cartrepo "github.com/danghoa77/e-project-be-sub000/internal/cart/repository"
	"github.com/danghoa77/e-project-be-sub000/internal/clients"
	"github.com/danghoa77/e-project-be-sub000/internal/order/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/order/repository"
	productdomain "github.com/danghoa77/e-project-be-sub000/internal/product/domain"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var checkoutTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checkout_requests_total",
		Help: "Checkout attempts by outcome.",
	},
	[]string{"outcome"},
)

// ProductGateway is the remote product service: authoritative variant
// reads for validation and the stock ledger's conditional decrement.
type ProductGateway interface {
	GetVariant(ctx context.Context, productID, variantID, sizeID string) (*productdomain.VariantInfo, error)
	DecreaseStock(ctx context.Context, orderID string, lines []productdomain.StockLine) error
}

type decrementPayload struct {
	OrderID string                    `json:"order_id"`
	Items   []productdomain.StockLine `json:"items"`
}

type orderEventPayload struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	TotalPrice int64  `json:"total_price"`
	Status     string `json:"status"`
	Method     string `json:"method,omitempty"`
}

type CheckoutService struct {
	cartRepo cartrepo.CartRepository
	repo     repository.OrderRepository
	products ProductGateway
	cache    cache.Cache
	logger   *zap.Logger
}

func NewCheckoutService(
	cartRepo cartrepo.CartRepository,
	repo repository.OrderRepository,
	products ProductGateway,
	c cache.Cache,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		cartRepo: cartRepo,
		repo:     repo,
		products: products,
		cache:    c,
		logger:   logger,
	}
}

// CreateOrder runs the checkout saga. Steps 1-3 (cart load, per-line
// validation against the product service, pricing) have no persistent
// effect and abort cleanly. Step 4 commits order + cart-clear + outbox
// in one transaction. Step 5, the stock decrement, happens after the
// commit; its failure is surfaced as ErrStockDecrementPending together
// with the created order, never swallowed, and the outbox poller keeps
// retrying it.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID, shippingAddress string) (*domain.Order, error) {
	cart, err := s.cartRepo.GetCart(ctx, userID)
	if err != nil {
		checkoutTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(cart.Items) == 0 {
		checkoutTotal.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	lines := make([]productdomain.StockLine, 0, len(cart.Items))
	var totalPrice int64

	for i, cartItem := range cart.Items {
		info, err := s.products.GetVariant(ctx, cartItem.ProductID, cartItem.VariantID, cartItem.SizeID)
		if err != nil {
			checkoutTotal.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("validate cart line %d (product %s): %w", i, cartItem.ProductID, err)
		}

		// Early reject. The ledger's conditional decrement remains the
		// source of truth for the race on the last units.
		if cartItem.Quantity > info.Stock {
			checkoutTotal.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("cart line %d (product %s size %s): requested %d, in stock %d: %w",
				i, cartItem.ProductID, info.Size, cartItem.Quantity, info.Stock, clients.ErrInsufficientStock)
		}

		price := effectivePrice(info)
		totalPrice += price * int64(cartItem.Quantity)

		items = append(items, domain.OrderItem{
			ProductID: cartItem.ProductID,
			VariantID: cartItem.VariantID,
			Name:      info.Name,
			Size:      info.Size,
			Color:     info.Color,
			Price:     price,
			Quantity:  cartItem.Quantity,
		})
		lines = append(lines, productdomain.StockLine{
			ProductID: cartItem.ProductID,
			VariantID: cartItem.VariantID,
			SizeID:    cartItem.SizeID,
			Quantity:  cartItem.Quantity,
		})
	}

	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           items,
		TotalPrice:      totalPrice,
		Status:          domain.StatusPending,
		ShippingAddress: shippingAddress,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	events, err := checkoutEvents(order, lines)
	if err != nil {
		checkoutTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// Step 4: the only true atomic boundary of the saga.
	if err := s.repo.CreateOrder(ctx, order, events); err != nil {
		checkoutTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.invalidateAfterCheckout(userID)

	// Step 5: best-effort immediate decrement. The outbox row stays
	// unprocessed on failure and the poller takes over; the ledger
	// dedupes on the order id if both end up delivering.
	if err := s.products.DecreaseStock(ctx, order.ID, lines); err != nil {
		checkoutTotal.WithLabelValues("partial").Inc()
		s.logger.Error("checkout_stock_decrement_failed",
			zap.String("order_id", order.ID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return order, fmt.Errorf("%w: %v", ErrStockDecrementPending, err)
	}

	if err := s.markDecrementDispatched(ctx, events); err != nil {
		s.logger.Warn("checkout_outbox_mark_failed", zap.String("order_id", order.ID), zap.Error(err))
	}

	checkoutTotal.WithLabelValues("success").Inc()
	s.logger.Info("checkout_completed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int64("total_price", totalPrice),
	)
	return order, nil
}

func checkoutEvents(order *domain.Order, lines []productdomain.StockLine) ([]repository.OutboxEvent, error) {
	decPayload, err := json.Marshal(decrementPayload{OrderID: order.ID, Items: lines})
	if err != nil {
		return nil, fmt.Errorf("marshal decrement payload: %w", err)
	}
	createdPayload, err := json.Marshal(orderEventPayload{
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice,
		Status:     string(order.Status),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal created payload: %w", err)
	}

	return []repository.OutboxEvent{
		{ID: uuid.NewString(), AggregateID: order.ID, EventType: repository.EventDecrementStock, Payload: decPayload},
		{ID: uuid.NewString(), AggregateID: order.ID, EventType: repository.EventOrderCreated, Payload: createdPayload},
	}, nil
}

// markDecrementDispatched closes the decrement intent once the
// synchronous call succeeded so the poller does not decrement twice.
func (s *CheckoutService) markDecrementDispatched(ctx context.Context, events []repository.OutboxEvent) error {
	for _, e := range events {
		if e.EventType != repository.EventDecrementStock {
			continue
		}
		if err := s.repo.MarkEventProcessed(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *CheckoutService) invalidateAfterCheckout(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.cache.Delete(ctx, cache.CartKey(userID)); err != nil {
		s.logger.Warn("cart_cache_invalidate_failed", zap.String("user_id", userID), zap.Error(err))
	}
	if err := s.cache.DeleteByPrefix(ctx, cache.OrderListPrefix(userID)); err != nil {
		s.logger.Warn("order_list_cache_invalidate_failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func effectivePrice(info *productdomain.VariantInfo) int64 {
	if info.SalePrice > 0 {
		return info.SalePrice
	}
	return info.Price
}
