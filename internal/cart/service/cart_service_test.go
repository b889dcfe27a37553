package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cache"
	"github.com/danghoa77/e-project-be-sub000/internal/cart/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/cart/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRepository struct {
	m        sync.Mutex
	cart     *domain.Cart
	err      error
	getCalls int
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

func (m *mockRepository) AddItem(_ context.Context, _ string, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart.Items = append(m.cart.Items, item)
	return nil
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, _, productID, variantID, sizeID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.cart.Items {
		item := &m.cart.Items[i]
		if item.ProductID == productID && item.VariantID == variantID && item.SizeID == sizeID {
			item.Quantity = quantity
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) RemoveItem(_ context.Context, _, productID, variantID, sizeID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	for i, item := range m.cart.Items {
		if item.ProductID == productID && item.VariantID == variantID && item.SizeID == sizeID {
			m.cart.Items = append(m.cart.Items[:i], m.cart.Items[i+1:]...)
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) ClearCart(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart.Items = nil
	return nil
}

type mockCache struct {
	m       sync.Mutex
	store   map[string][]byte
	deleted []string
	getErr  error
}

func newMockCache() *mockCache {
	return &mockCache{store: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.store[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return data, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.store[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, keys ...string) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, key := range keys {
		delete(m.store, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

func (m *mockCache) DeleteByPrefix(context.Context, string) error { return nil }

func testCart() *domain.Cart {
	return &domain.Cart{
		UserID: "u1",
		Items: []domain.CartItem{
			{ProductID: "p1", VariantID: "v1", SizeID: "s1", Quantity: 2},
		},
	}
}

func TestGetCart_CacheMissFallsBackToRepo(t *testing.T) {
	repo := &mockRepository{cart: testCart()}
	c := newMockCache()
	svc := NewCartService(repo, c, zap.NewNop())

	cart, err := svc.GetCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 1, repo.getCalls)

	// The read populates the cache asynchronously.
	require.Eventually(t, func() bool {
		c.m.Lock()
		defer c.m.Unlock()
		_, ok := c.store[cache.CartKey("u1")]
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestGetCart_ServedFromCache(t *testing.T) {
	repo := &mockRepository{cart: testCart()}
	c := newMockCache()
	data, err := json.Marshal(testCart())
	require.NoError(t, err)
	c.store[cache.CartKey("u1")] = data

	svc := NewCartService(repo, c, zap.NewNop())
	cart, err := svc.GetCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Zero(t, repo.getCalls)
}

func TestGetCart_CacheErrorDegradesToRepo(t *testing.T) {
	repo := &mockRepository{cart: testCart()}
	c := newMockCache()
	c.getErr = errors.New("connection refused")

	svc := NewCartService(repo, c, zap.NewNop())
	cart, err := svc.GetCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 1, repo.getCalls)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	svc := NewCartService(&mockRepository{cart: testCart()}, newMockCache(), zap.NewNop())

	err := svc.AddItem(context.Background(), "u1", domain.CartItem{ProductID: "p1", VariantID: "v1", SizeID: "s1"})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddItem_InvalidatesCache(t *testing.T) {
	repo := &mockRepository{cart: testCart()}
	c := newMockCache()
	c.store[cache.CartKey("u1")] = []byte(`{}`)
	svc := NewCartService(repo, c, zap.NewNop())

	err := svc.AddItem(context.Background(), "u1", domain.CartItem{
		ProductID: "p2", VariantID: "v2", SizeID: "s2", Quantity: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, c.deleted, cache.CartKey("u1"))
}

func TestUpdateQuantity_MissingItem(t *testing.T) {
	svc := NewCartService(&mockRepository{cart: testCart()}, newMockCache(), zap.NewNop())

	err := svc.UpdateQuantity(context.Background(), "u1", "nope", "v1", "s1", 3)
	require.ErrorIs(t, err, repository.ErrItemNotFound)
}

func TestRemoveItem_InvalidatesCache(t *testing.T) {
	repo := &mockRepository{cart: testCart()}
	c := newMockCache()
	svc := NewCartService(repo, c, zap.NewNop())

	err := svc.RemoveItem(context.Background(), "u1", "p1", "v1", "s1")
	require.NoError(t, err)
	assert.Empty(t, repo.cart.Items)
	assert.Contains(t, c.deleted, cache.CartKey("u1"))
}

func TestClearCart(t *testing.T) {
	repo := &mockRepository{cart: testCart()}
	svc := NewCartService(repo, newMockCache(), zap.NewNop())

	require.NoError(t, svc.ClearCart(context.Background(), "u1"))
	assert.Empty(t, repo.cart.Items)
}
