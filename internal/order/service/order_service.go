package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cache"
	"github.com/danghoa77/e-project-be-sub000/internal/order/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/order/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// OrderService serves order reads and the status transitions that
// arrive after checkout: the payment notification and operator updates.
type OrderService struct {
	repo   repository.OrderRepository
	cache  cache.Cache
	logger *zap.Logger
	sfg    singleflight.Group
}

func NewOrderService(repo repository.OrderRepository, c cache.Cache, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:   repo,
		cache:  c,
		logger: logger,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.GetOrderByID(ctx, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, userID string, q repository.ListQuery) ([]*domain.Order, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	key := cache.OrderListKey(userID, params)

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		data, errGet := s.cache.Get(ctx, key)
		if errGet == nil {
			var orders []*domain.Order
			if errUnmarshal := json.Unmarshal(data, &orders); errUnmarshal == nil {
				return orders, nil
			}
		} else if !errors.Is(errGet, cache.ErrCacheMiss) {
			s.logger.Warn("order_list_cache_get_failed", zap.String("user_id", userID), zap.Error(errGet))
		}

		orders, errRepo := s.repo.ListOrdersByUserID(ctx, userID, q)
		if errRepo != nil {
			return nil, errRepo
		}

		go func() {
			data, errMarshal := json.Marshal(orders)
			if errMarshal != nil {
				return
			}
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, key, data, 0); errSet != nil {
				s.logger.Warn("order_list_cache_set_failed", zap.String("user_id", userID), zap.Error(errSet))
			}
		}()

		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Order), nil
}

// MarkPaid applies the payment notification as a conditional
// pending -> confirmed transition. A duplicate notification finds the
// order already confirmed and becomes a no-op, which makes the webhook
// reconciler's re-delivery safe.
func (s *OrderService) MarkPaid(ctx context.Context, orderID, method string) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(orderEventPayload{
		OrderID:    orderID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice,
		Status:     string(domain.StatusConfirmed),
		Method:     method,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal paid payload: %w", err)
	}

	applied, err := s.repo.UpdateStatus(ctx, orderID,
		[]domain.Status{domain.StatusPending},
		domain.StatusConfirmed,
		[]repository.OutboxEvent{{
			ID:          uuid.NewString(),
			AggregateID: orderID,
			EventType:   repository.EventOrderPaid,
			Payload:     payload,
		}},
	)
	if err != nil {
		return nil, err
	}
	if !applied {
		s.logger.Info("order_paid_duplicate",
			zap.String("order_id", orderID),
			zap.String("status", string(order.Status)),
		)
		return order, nil
	}

	s.invalidateOrder(order.UserID, orderID)
	s.logger.Info("order_confirmed",
		zap.String("order_id", orderID),
		zap.String("method", method),
	)
	return s.repo.GetOrderByID(ctx, orderID)
}

// UpdateStatus is the operator transition. Unlike MarkPaid, a zero-row
// conditional update here is an error: the operator asked for a
// transition the state machine does not define.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, to domain.Status) (*domain.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, to)
	}

	var events []repository.OutboxEvent
	if to == domain.StatusCancelled {
		payload, err := json.Marshal(orderEventPayload{
			OrderID:    orderID,
			UserID:     order.UserID,
			TotalPrice: order.TotalPrice,
			Status:     string(to),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal cancelled payload: %w", err)
		}
		events = append(events, repository.OutboxEvent{
			ID:          uuid.NewString(),
			AggregateID: orderID,
			EventType:   repository.EventOrderCancelled,
			Payload:     payload,
		})
	}

	applied, err := s.repo.UpdateStatus(ctx, orderID, []domain.Status{order.Status}, to, events)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a race with a concurrent transition.
		return nil, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, orderID)
	}

	s.invalidateOrder(order.UserID, orderID)
	return s.repo.GetOrderByID(ctx, orderID)
}

func (s *OrderService) invalidateOrder(userID, orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.cache.Delete(ctx, cache.OrderKey(orderID)); err != nil {
		s.logger.Warn("order_cache_invalidate_failed", zap.String("order_id", orderID), zap.Error(err))
	}
	if err := s.cache.DeleteByPrefix(ctx, cache.OrderListPrefix(userID)); err != nil {
		s.logger.Warn("order_list_cache_invalidate_failed", zap.String("user_id", userID), zap.Error(err))
	}
}
