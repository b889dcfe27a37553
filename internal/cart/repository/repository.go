package repository

import (
	"context"
	"errors"

	"github.com/danghoa77/e-project-be-sub000/internal/cart/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository owns the per-user pending-checkout snapshot. Clearing
// the items during checkout is NOT done here: the order repository
// empties cart_items inside the order-creation transaction so both
// effects commit together.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID, productID, variantID, sizeID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID, variantID, sizeID string) error
	ClearCart(ctx context.Context, userID string) error
}
