package service

import (
	"context"
	"testing"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cache"
	"github.com/danghoa77/e-project-be-sub000/internal/order/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/order/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedOrder(repo *mockOrderRepo, status domain.Status) *domain.Order {
	order := &domain.Order{
		ID:         "o1",
		UserID:     "u1",
		TotalPrice: 900000,
		Status:     status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	repo.orders[order.ID] = order
	return order
}

func TestMarkPaid_ConfirmsPendingOrder(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, domain.StatusPending)
	c := newMockCache()
	svc := NewOrderService(repo, c, zap.NewNop())

	order, err := svc.MarkPaid(context.Background(), "o1", "vnpay")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, order.Status)

	assert.Contains(t, repo.eventTypes(), repository.EventOrderPaid)
	assert.Contains(t, c.deletedKeys(), cache.OrderKey("o1"))
	assert.Contains(t, c.deletedPrefixes(), cache.OrderListPrefix("u1"))
}

func TestMarkPaid_DuplicateIsNoOp(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, domain.StatusConfirmed)
	c := newMockCache()
	svc := NewOrderService(repo, c, zap.NewNop())

	order, err := svc.MarkPaid(context.Background(), "o1", "vnpay")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, order.Status)

	// A re-delivered notification changes nothing and emits nothing.
	assert.Empty(t, repo.eventTypes())
	assert.Empty(t, c.deletedKeys())
}

func TestMarkPaid_OrderNotFound(t *testing.T) {
	svc := NewOrderService(newMockOrderRepo(), newMockCache(), zap.NewNop())

	_, err := svc.MarkPaid(context.Background(), "missing", "vnpay")
	require.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestUpdateStatus_ForwardTransition(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, domain.StatusConfirmed)
	svc := NewOrderService(repo, newMockCache(), zap.NewNop())

	order, err := svc.UpdateStatus(context.Background(), "o1", domain.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, order.Status)
	// Plain forward transitions carry no lifecycle event.
	assert.Empty(t, repo.eventTypes())
}

func TestUpdateStatus_CancelEmitsEvent(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, domain.StatusPending)
	svc := NewOrderService(repo, newMockCache(), zap.NewNop())

	order, err := svc.UpdateStatus(context.Background(), "o1", domain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, order.Status)
	assert.Contains(t, repo.eventTypes(), repository.EventOrderCancelled)
}

func TestUpdateStatus_RejectsIllegalTransition(t *testing.T) {
	tests := []struct {
		name string
		from domain.Status
		to   domain.Status
	}{
		{"pending cannot ship", domain.StatusPending, domain.StatusShipped},
		{"delivered is terminal", domain.StatusDelivered, domain.StatusCancelled},
		{"no path back to pending", domain.StatusConfirmed, domain.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockOrderRepo()
			seedOrder(repo, tt.from)
			svc := NewOrderService(repo, newMockCache(), zap.NewNop())

			_, err := svc.UpdateStatus(context.Background(), "o1", tt.to)
			require.ErrorIs(t, err, ErrInvalidTransition)

			order, err := repo.GetOrderByID(context.Background(), "o1")
			require.NoError(t, err)
			assert.Equal(t, tt.from, order.Status)
		})
	}
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, domain.StatusPending)
	svc := NewOrderService(repo, newMockCache(), zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "o1", domain.Status("paid"))
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListOrders_PopulatesCache(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, domain.StatusPending)
	c := newMockCache()
	svc := NewOrderService(repo, c, zap.NewNop())

	orders, err := svc.ListOrders(context.Background(), "u1", repository.ListQuery{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, orders, 1)

	// The cache write is asynchronous.
	require.Eventually(t, func() bool {
		c.m.Lock()
		defer c.m.Unlock()
		return len(c.store) == 1
	}, time.Second, 10*time.Millisecond)
}
