package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cache"
	"github.com/danghoa77/e-project-be-sub000/internal/product/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/product/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProductRepo struct {
	m           sync.Mutex
	products    map[string]*domain.Product
	getCalls    int
	decremented []domain.StockLine
	incremented []domain.StockLine
	stockErr    error
}

func newMockProductRepo(products ...*domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[string]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.getCalls++
	product, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockProductRepo) ListProducts(_ context.Context, _ repository.ListQuery) ([]*domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var products []*domain.Product
	for _, p := range m.products {
		products = append(products, p)
	}
	return products, nil
}

func (m *mockProductRepo) DecrementStock(_ context.Context, line domain.StockLine) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.stockErr != nil {
		return m.stockErr
	}
	m.decremented = append(m.decremented, line)
	return nil
}

func (m *mockProductRepo) IncrementStock(_ context.Context, line domain.StockLine) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.stockErr != nil {
		return m.stockErr
	}
	m.incremented = append(m.incremented, line)
	return nil
}

func (m *mockProductRepo) Close(context.Context) error { return nil }

type mockCache struct {
	m        sync.Mutex
	store    map[string][]byte
	deleted  []string
	prefixes []string
}

func newMockCache() *mockCache {
	return &mockCache{store: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.m.Lock()
	defer m.m.Unlock()
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

func (m *mockCache) DeleteByPrefix(_ context.Context, prefix string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.prefixes = append(m.prefixes, prefix)
	for key := range m.store {
		if strings.HasPrefix(key, prefix) {
			delete(m.store, key)
		}
	}
	return nil
}

func testProduct() *domain.Product {
	return &domain.Product{
		ID:       "p1",
		Name:     "Ao thun",
		Category: "shirts",
		Variants: []domain.ColorVariant{
			{
				ID:    "v1",
				Color: "black",
				Sizes: []domain.SizeOption{
					{ID: "s1", Size: "M", Stock: 10, Price: 250000},
					{ID: "s2", Size: "L", Stock: 0, Price: 250000, SalePrice: 200000},
				},
			},
		},
	}
}

func TestGetProduct_CacheMissHitsRepo(t *testing.T) {
	repo := newMockProductRepo(testProduct())
	c := newMockCache()
	svc := NewProductService(repo, c, zap.NewNop())

	product, err := svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ao thun", product.Name)
	assert.Equal(t, 1, repo.getCalls)

	require.Eventually(t, func() bool {
		c.m.Lock()
		defer c.m.Unlock()
		_, ok := c.store[cache.ProductKey("p1")]
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestGetProduct_NotFound(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), newMockCache(), zap.NewNop())

	_, err := svc.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestGetVariant_FlattensSizeOption(t *testing.T) {
	svc := NewProductService(newMockProductRepo(testProduct()), newMockCache(), zap.NewNop())

	info, err := svc.GetVariant(context.Background(), "p1", "v1", "s2")
	require.NoError(t, err)
	assert.Equal(t, "Ao thun", info.Name)
	assert.Equal(t, "black", info.Color)
	assert.Equal(t, "L", info.Size)
	assert.Equal(t, 0, info.Stock)
	assert.Equal(t, int64(200000), info.SalePrice)
}

func TestGetVariant_Missing(t *testing.T) {
	svc := NewProductService(newMockProductRepo(testProduct()), newMockCache(), zap.NewNop())

	_, err := svc.GetVariant(context.Background(), "p1", "nope", "s1")
	require.ErrorIs(t, err, repository.ErrVariantNotFound)

	_, err = svc.GetVariant(context.Background(), "p1", "v1", "nope")
	require.ErrorIs(t, err, repository.ErrSizeNotFound)
}

func TestDecreaseStock_AppliesAllLines(t *testing.T) {
	repo := newMockProductRepo(testProduct())
	c := newMockCache()
	c.store[cache.ProductKey("p1")] = []byte(`{}`)
	svc := NewProductService(repo, c, zap.NewNop())

	lines := []domain.StockLine{
		{ProductID: "p1", VariantID: "v1", SizeID: "s1", Quantity: 2},
		{ProductID: "p1", VariantID: "v1", SizeID: "s2", Quantity: 1},
	}
	require.NoError(t, svc.DecreaseStock(context.Background(), "order-1", lines))
	assert.Len(t, repo.decremented, 2)

	// The stale product entry and every cached listing page go.
	assert.Equal(t, []string{cache.ProductKey("p1")}, c.deleted)
	assert.Contains(t, c.prefixes, cache.ProductListPrefix())
}

func TestDecreaseStock_DuplicateOrderIsNoOp(t *testing.T) {
	repo := newMockProductRepo(testProduct())
	c := newMockCache()
	svc := NewProductService(repo, c, zap.NewNop())

	lines := []domain.StockLine{
		{ProductID: "p1", VariantID: "v1", SizeID: "s1", Quantity: 2},
	}
	require.NoError(t, svc.DecreaseStock(context.Background(), "order-1", lines))
	require.Len(t, repo.decremented, 1)

	// Re-delivery of the same order's decrement must not touch the ledger.
	require.NoError(t, svc.DecreaseStock(context.Background(), "order-1", lines))
	assert.Len(t, repo.decremented, 1)

	// A different order still applies.
	require.NoError(t, svc.DecreaseStock(context.Background(), "order-2", lines))
	assert.Len(t, repo.decremented, 2)
}

func TestDecreaseStock_PreseededMarkerSuppressesApply(t *testing.T) {
	repo := newMockProductRepo(testProduct())
	c := newMockCache()
	c.store[cache.StockDecrementKey("order-1")] = []byte("1")
	svc := NewProductService(repo, c, zap.NewNop())

	err := svc.DecreaseStock(context.Background(), "order-1", []domain.StockLine{
		{ProductID: "p1", VariantID: "v1", SizeID: "s1", Quantity: 2},
	})
	require.NoError(t, err)
	assert.Empty(t, repo.decremented)
}

func TestDecreaseStock_NoOrderIDSkipsMarker(t *testing.T) {
	repo := newMockProductRepo(testProduct())
	c := newMockCache()
	svc := NewProductService(repo, c, zap.NewNop())

	lines := []domain.StockLine{
		{ProductID: "p1", VariantID: "v1", SizeID: "s1", Quantity: 1},
	}
	require.NoError(t, svc.DecreaseStock(context.Background(), "", lines))
	require.NoError(t, svc.DecreaseStock(context.Background(), "", lines))
	assert.Len(t, repo.decremented, 2)
}

func TestDecreaseStock_ReportsFailedLine(t *testing.T) {
	repo := newMockProductRepo(testProduct())
	repo.stockErr = repository.ErrInsufficientStock
	svc := NewProductService(repo, newMockCache(), zap.NewNop())

	line := domain.StockLine{ProductID: "p1", VariantID: "v1", SizeID: "s1", Quantity: 99}
	err := svc.DecreaseStock(context.Background(), "order-1", []domain.StockLine{line})
	require.ErrorIs(t, err, repository.ErrInsufficientStock)

	var lineErr *StockLineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, line, lineErr.Line)
}

func TestDecreaseStock_RejectsNonPositiveQuantity(t *testing.T) {
	repo := newMockProductRepo(testProduct())
	svc := NewProductService(repo, newMockCache(), zap.NewNop())

	err := svc.DecreaseStock(context.Background(), "order-1", []domain.StockLine{
		{ProductID: "p1", VariantID: "v1", SizeID: "s1", Quantity: 0},
	})
	var lineErr *StockLineError
	require.ErrorAs(t, err, &lineErr)
	assert.Empty(t, repo.decremented)
}

func TestAdjustStock_Increase(t *testing.T) {
	repo := newMockProductRepo(testProduct())
	svc := NewProductService(repo, newMockCache(), zap.NewNop())

	line := domain.StockLine{ProductID: "p1", VariantID: "v1", SizeID: "s2", Quantity: 5}
	product, err := svc.AdjustStock(context.Background(), line, domain.AdjustIncrease)
	require.NoError(t, err)
	assert.Equal(t, "p1", product.ID)
	assert.Equal(t, []domain.StockLine{line}, repo.incremented)
	assert.Empty(t, repo.decremented)
}

func TestAdjustStock_UnknownDirection(t *testing.T) {
	svc := NewProductService(newMockProductRepo(testProduct()), newMockCache(), zap.NewNop())

	_, err := svc.AdjustStock(context.Background(),
		domain.StockLine{ProductID: "p1", VariantID: "v1", SizeID: "s1", Quantity: 1},
		domain.AdjustDirection("sideways"),
	)
	require.Error(t, err)
}

func TestEffectivePrice(t *testing.T) {
	assert.Equal(t, int64(250000), domain.SizeOption{Price: 250000}.EffectivePrice())
	assert.Equal(t, int64(200000), domain.SizeOption{Price: 250000, SalePrice: 200000}.EffectivePrice())
}

func TestDecreaseStock_ConcurrentCallsAllRecorded(t *testing.T) {
	repo := newMockProductRepo(testProduct())
	svc := NewProductService(repo, newMockCache(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := svc.DecreaseStock(context.Background(), fmt.Sprintf("order-%d", n), []domain.StockLine{
				{ProductID: "p1", VariantID: "v1", SizeID: "s1", Quantity: 1},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, repo.decremented, 10)
}
