package domain

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Payment tracks one order's session with a provider. It is created
// PENDING when a redirect URL is issued and moves to a terminal state
// exactly once, no matter how often the provider re-delivers its
// callback.
type Payment struct {
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	Amount        int64     `json:"amount"`
	Status        Status    `json:"status"`
	Provider      string    `json:"provider"`
	TransactionNo string    `json:"transaction_no,omitempty"`
	PayDate       time.Time `json:"pay_date,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
