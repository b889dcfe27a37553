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
	"github.com/danghoa77/e-project-be-sub000/internal/product/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/product/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StockLineError reports which line of a bulk stock operation failed.
type StockLineError struct {
	Line domain.StockLine
	Err  error
}

func (e *StockLineError) Error() string {
	return fmt.Sprintf("stock operation failed for product=%s variant=%s size=%s qty=%d: %v",
		e.Line.ProductID, e.Line.VariantID, e.Line.SizeID, e.Line.Quantity, e.Err)
}

func (e *StockLineError) Unwrap() error { return e.Err }

type ProductService struct {
	repo   repository.ProductRepository
	cache  cache.Cache
	logger *zap.Logger
	sfg    singleflight.Group // Prevents cache stampede
}

func NewProductService(repo repository.ProductRepository, c cache.Cache, logger *zap.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		cache:  c,
		logger: logger,
	}
}

// GetProduct reads through the cache. Cache errors other than a miss
// are logged and ignored so a broken cache degrades to direct reads.
func (s *ProductService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	key := cache.ProductKey(productID)

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		data, errGet := s.cache.Get(ctx, key)
		if errGet == nil {
			var product domain.Product
			if errUnmarshal := json.Unmarshal(data, &product); errUnmarshal == nil {
				return &product, nil
			}
			s.logger.Warn("product_cache_decode_failed", zap.String("key", key))
		} else if !errors.Is(errGet, cache.ErrCacheMiss) {
			s.logger.Warn("product_cache_get_failed", zap.String("key", key), zap.Error(errGet))
		}

		product, errRepo := s.repo.GetProduct(ctx, productID)
		if errRepo != nil {
			return nil, errRepo
		}

		s.populateCache(key, product)
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *ProductService) ListProducts(ctx context.Context, q repository.ListQuery) ([]*domain.Product, error) {
	key := cache.ProductListKey(listParams(q))

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		data, errGet := s.cache.Get(ctx, key)
		if errGet == nil {
			var products []*domain.Product
			if errUnmarshal := json.Unmarshal(data, &products); errUnmarshal == nil {
				return products, nil
			}
		} else if !errors.Is(errGet, cache.ErrCacheMiss) {
			s.logger.Warn("product_cache_get_failed", zap.String("key", key), zap.Error(errGet))
		}

		products, errRepo := s.repo.ListProducts(ctx, q)
		if errRepo != nil {
			return nil, errRepo
		}

		s.populateCache(key, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Product), nil
}

// GetVariant flattens one size option of one color variant into the
// view the checkout path validates against.
func (s *ProductService) GetVariant(ctx context.Context, productID, variantID, sizeID string) (*domain.VariantInfo, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	variant, ok := product.Variant(variantID)
	if !ok {
		return nil, repository.ErrVariantNotFound
	}
	size, ok := variant.Size(sizeID)
	if !ok {
		return nil, repository.ErrSizeNotFound
	}

	return &domain.VariantInfo{
		ProductID: product.ID,
		VariantID: variant.ID,
		SizeID:    size.ID,
		Name:      product.Name,
		Color:     variant.Color,
		Size:      size.Size,
		Stock:     size.Stock,
		Price:     size.Price,
		SalePrice: size.SalePrice,
	}, nil
}

// decrementMarkerTTL bounds how long an applied decrement is remembered
// for duplicate suppression. Redeliveries arrive within seconds; a day
// leaves a wide margin.
const decrementMarkerTTL = 24 * time.Hour

// DecreaseStock applies the conditional decrement line by line. A failed
// line stops the loop and is reported with its position; lines already
// applied are not compensated here. The checkout outbox on the order
// side is the recovery path for that window.
//
// Requests carrying an order id are applied at most once: a marker is
// recorded after the last line lands, and a request whose marker already
// exists is acknowledged without touching the ledger. The order side
// delivers the same decrement both synchronously and through its outbox
// retries, so duplicates are expected, not exceptional.
func (s *ProductService) DecreaseStock(ctx context.Context, orderID string, lines []domain.StockLine) error {
	var marker string
	if orderID != "" {
		marker = cache.StockDecrementKey(orderID)
		if _, err := s.cache.Get(ctx, marker); err == nil {
			s.logger.Info("stock_decrement_duplicate", zap.String("order_id", orderID))
			return nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("stock_decrement_marker_check_failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return &StockLineError{Line: line, Err: errors.New("quantity must be positive")}
		}
		if err := s.repo.DecrementStock(ctx, line); err != nil {
			return &StockLineError{Line: line, Err: err}
		}
	}

	if marker != "" {
		if err := s.cache.Set(ctx, marker, []byte("1"), decrementMarkerTTL); err != nil {
			s.logger.Warn("stock_decrement_marker_set_failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	s.invalidateProducts(lines)
	return nil
}

// AdjustStock is the operator primitive: a single conditional
// increment or decrement outside the checkout path.
func (s *ProductService) AdjustStock(ctx context.Context, line domain.StockLine, direction domain.AdjustDirection) (*domain.Product, error) {
	if line.Quantity <= 0 {
		return nil, &StockLineError{Line: line, Err: errors.New("quantity must be positive")}
	}

	var err error
	switch direction {
	case domain.AdjustIncrease:
		err = s.repo.IncrementStock(ctx, line)
	case domain.AdjustDecrease:
		err = s.repo.DecrementStock(ctx, line)
	default:
		return nil, fmt.Errorf("unknown adjust direction %q", direction)
	}
	if err != nil {
		return nil, &StockLineError{Line: line, Err: err}
	}

	s.invalidateProducts([]domain.StockLine{line})
	return s.repo.GetProduct(ctx, line.ProductID)
}

func (s *ProductService) populateCache(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if errSet := s.cache.Set(ctx, key, data, 0); errSet != nil {
			s.logger.Warn("product_cache_set_failed", zap.String("key", key), zap.Error(errSet))
		}
	}()
}

// invalidateProducts removes every cache entry a stock mutation can have
// made stale: the product keys and all cached listing pages.
func (s *ProductService) invalidateProducts(lines []domain.StockLine) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	seen := make(map[string]struct{}, len(lines))
	keys := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		keys = append(keys, cache.ProductKey(line.ProductID))
	}

	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("product_cache_invalidate_failed", zap.Error(err))
	}
	if err := s.cache.DeleteByPrefix(ctx, cache.ProductListPrefix()); err != nil {
		s.logger.Warn("product_list_cache_invalidate_failed", zap.Error(err))
	}
}

func listParams(q repository.ListQuery) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	return params
}
