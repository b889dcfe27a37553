package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danghoa77/e-project-be-sub000/internal/order/domain"
	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateOrder persists the order, empties the user's cart items and
// records the outbox events in one transaction. The cart row itself is
// kept; only its items go.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, events []OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkout tx: %w", err)
	}
	defer tx.Rollback()

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, user_id, items, total_price, status, shipping_address, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`
	if _, err := tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		itemsJSON,
		order.TotalPrice,
		order.Status,
		order.ShippingAddress,
	); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, order.UserID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE user_id = $1`, order.UserID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}

	if err := insertEvents(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkout tx: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT id, user_id, items, total_price, status, shipping_address, created_at, updated_at
	          FROM orders WHERE id = $1`

	var order domain.Order
	var itemsJSON []byte
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&order.TotalPrice,
		&order.Status,
		&order.ShippingAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string, q ListQuery) ([]*domain.Order, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Page < 1 {
		q.Page = 1
	}

	query := `SELECT id, user_id, items, total_price, status, shipping_address, created_at, updated_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, q.Limit, (q.Page-1)*q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		var itemsJSON []byte
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&itemsJSON,
			&order.TotalPrice,
			&order.Status,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// UpdateStatus is the conditional transition primitive. A zero-row
// update means the order was not in any of the `from` states; callers
// decide whether that is a duplicate delivery or an illegal transition.
func (r *Repository) UpdateStatus(ctx context.Context, orderID string, from []domain.Status, to domain.Status, events []OutboxEvent) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin status tx: %w", err)
	}
	defer tx.Rollback()

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	query := `UPDATE orders SET status = $1, updated_at = NOW()
	          WHERE id = $2 AND status = ANY($3)`
	res, err := tx.ExecContext(ctx, query, to, orderID, pq.Array(fromStrs))
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("order status rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := insertEvents(ctx, tx, events); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit status tx: %w", err)
	}
	return true, nil
}

// GetUnprocessedEvents returns pending outbox rows old enough that the
// synchronous dispatch attempted at checkout time has certainly
// finished. Without the age floor the poller would race the in-flight
// call and deliver the same intent twice.
func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, attempts, created_at
	          FROM order_outbox
	          WHERE processed_at IS NULL AND failed_at IS NULL
	            AND created_at < NOW() - INTERVAL '10 seconds'
	          ORDER BY created_at
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventProcessed(ctx context.Context, eventID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE order_outbox SET processed_at = NOW() WHERE id = $1 AND processed_at IS NULL`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark event processed rows affected: %w", err)
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// MarkEventFailed bumps the attempt counter and records the last error.
// The event stays eligible for retry; the poller decides when attempts
// are exhausted and sets failed_at through AbandonEvent.
func (r *Repository) MarkEventFailed(ctx context.Context, eventID string, reason string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE order_outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		eventID, reason,
	); err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}

func (r *Repository) AbandonEvent(ctx context.Context, eventID string, reason string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE order_outbox SET failed_at = NOW(), last_error = $2 WHERE id = $1`,
		eventID, reason,
	); err != nil {
		return fmt.Errorf("abandon event: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func insertEvents(ctx context.Context, tx *sql.Tx, events []OutboxEvent) error {
	for _, e := range events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_outbox (id, aggregate_id, event_type, payload, attempts, created_at)
			 VALUES ($1, $2, $3, $4, 0, NOW())`,
			e.ID, e.AggregateID, e.EventType, e.Payload,
		); err != nil {
			return fmt.Errorf("insert outbox event %s: %w", e.EventType, err)
		}
	}
	return nil
}
