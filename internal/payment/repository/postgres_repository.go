package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/payment/domain"
	_ "github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertPending creates the PENDING row for an order, or refreshes it
// when the user re-requests a redirect URL before paying. A payment
// that already reached a terminal state is left untouched.
func (r *Repository) UpsertPending(ctx context.Context, payment *domain.Payment) error {
	query := `INSERT INTO payments (order_id, user_id, amount, status, provider, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	          ON CONFLICT (order_id) DO UPDATE
	          SET amount = EXCLUDED.amount, provider = EXCLUDED.provider, updated_at = NOW()
	          WHERE payments.status = 'PENDING'`

	if _, err := r.db.ExecContext(ctx, query,
		payment.OrderID,
		payment.UserID,
		payment.Amount,
		domain.StatusPending,
		payment.Provider,
	); err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	query := `SELECT order_id, user_id, amount, status, provider, transaction_no, pay_date, created_at, updated_at
	          FROM payments WHERE order_id = $1`

	var payment domain.Payment
	var transactionNo sql.NullString
	var payDate sql.NullTime
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&payment.OrderID,
		&payment.UserID,
		&payment.Amount,
		&payment.Status,
		&payment.Provider,
		&transactionNo,
		&payDate,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment: %w", err)
	}

	payment.TransactionNo = transactionNo.String
	if payDate.Valid {
		payment.PayDate = payDate.Time
	}
	return &payment, nil
}

// Transition is the conditional terminal write. The WHERE clause on
// PENDING makes the precondition check and the update one atomic
// statement; a duplicate callback matches zero rows.
func (r *Repository) Transition(ctx context.Context, orderID string, to domain.Status, transactionNo string, payDate time.Time) (bool, error) {
	query := `UPDATE payments
	          SET status = $1, transaction_no = NULLIF($2, ''), pay_date = $3, updated_at = NOW()
	          WHERE order_id = $4 AND status = 'PENDING'`

	var payDateArg interface{}
	if !payDate.IsZero() {
		payDateArg = payDate
	}

	res, err := r.db.ExecContext(ctx, query, to, transactionNo, payDateArg, orderID)
	if err != nil {
		return false, fmt.Errorf("transition payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition payment rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
