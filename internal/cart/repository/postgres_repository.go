package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cart/domain"
	_ "github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetCart returns the user's cart, creating the row lazily on first
// access so callers never see ErrCartNotFound for a valid user.
func (r *Repository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart := &domain.Cart{UserID: userID}

	err := r.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM carts WHERE user_id = $1`,
		userID,
	).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if err := r.ensureCart(ctx, userID); err != nil {
			return nil, err
		}
		now := time.Now()
		cart.CreatedAt = now
		cart.UpdatedAt = now
		return cart, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, variant_id, size_id, quantity, added_at
		 FROM cart_items WHERE user_id = $1 ORDER BY added_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.SizeID, &item.Quantity, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return cart, nil
}

func (r *Repository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if err := r.ensureCart(ctx, userID); err != nil {
		return err
	}

	query := `INSERT INTO cart_items (user_id, product_id, variant_id, size_id, quantity, added_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())
	          ON CONFLICT (user_id, product_id, variant_id, size_id)
	          DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, added_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, item.ProductID, item.VariantID, item.SizeID, item.Quantity); err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	return r.touchCart(ctx, userID)
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, userID, productID, variantID, sizeID string, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $5
		 WHERE user_id = $1 AND product_id = $2 AND variant_id = $3 AND size_id = $4`,
		userID, productID, variantID, sizeID, quantity,
	)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart item rows affected: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return r.touchCart(ctx, userID)
}

func (r *Repository) RemoveItem(ctx context.Context, userID, productID, variantID, sizeID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items
		 WHERE user_id = $1 AND product_id = $2 AND variant_id = $3 AND size_id = $4`,
		userID, productID, variantID, sizeID,
	)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cart item rows affected: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return r.touchCart(ctx, userID)
}

func (r *Repository) ClearCart(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	return r.touchCart(ctx, userID)
}

func (r *Repository) ensureCart(ctx context.Context, userID string) error {
	query := `INSERT INTO carts (user_id, created_at, updated_at)
	          VALUES ($1, NOW(), NOW())
	          ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("ensure cart: %w", err)
	}
	return nil
}

func (r *Repository) touchCart(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}
