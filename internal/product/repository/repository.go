package repository

import (
	"context"
	"errors"

	"github.com/danghoa77/e-project-be-sub000/internal/product/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrSizeNotFound      = errors.New("size option not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type ListQuery struct {
	Page     int
	Limit    int
	Category string
}

// ProductRepository owns the product records and the per-size stock
// counters. DecrementStock and IncrementStock are the ledger primitive:
// the precondition check and the write happen as one atomic step per
// size option, so concurrent decrements on the last unit cannot both
// succeed.
type ProductRepository interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context, q ListQuery) ([]*domain.Product, error)
	DecrementStock(ctx context.Context, line domain.StockLine) error
	IncrementStock(ctx context.Context, line domain.StockLine) error
	Close(ctx context.Context) error
}
