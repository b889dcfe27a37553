package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cache"
	"github.com/danghoa77/e-project-be-sub000/internal/cart/domain"
	"github.com/danghoa77/e-project-be-sub000/internal/cart/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

type CartService struct {
	repo   repository.CartRepository
	cache  cache.Cache
	logger *zap.Logger
	sfg    singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, c cache.Cache, logger *zap.Logger) *CartService {
	return &CartService{
		repo:   repo,
		cache:  c,
		logger: logger,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	key := cache.CartKey(userID)

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		data, errGet := s.cache.Get(ctx, key)
		if errGet == nil {
			var cart domain.Cart
			if errUnmarshal := json.Unmarshal(data, &cart); errUnmarshal == nil {
				return &cart, nil
			}
		} else if !errors.Is(errGet, cache.ErrCacheMiss) {
			s.logger.Warn("cart_cache_get_failed", zap.String("user_id", userID), zap.Error(errGet))
		}

		cart, errRepo := s.repo.GetCart(ctx, userID)
		if errRepo != nil {
			return nil, errRepo
		}

		go func() {
			data, errMarshal := json.Marshal(cart)
			if errMarshal != nil {
				return
			}
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, key, data, 0); errSet != nil {
				s.logger.Warn("cart_cache_set_failed", zap.String("user_id", userID), zap.Error(errSet))
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

func (s *CartService) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID, variantID, sizeID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, variantID, sizeID, quantity); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID, variantID, sizeID string) error {
	if err := s.repo.RemoveItem(ctx, userID, productID, variantID, sizeID); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.ClearCart(ctx, userID); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CartService) invalidate(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, cache.CartKey(userID)); err != nil {
		s.logger.Warn("cart_cache_invalidate_failed", zap.String("user_id", userID), zap.Error(err))
	}
}
