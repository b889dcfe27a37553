package service

import "errors"

var (
	ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

	// ErrStockDecrementPending reports the saga's narrow window: the
	// order and cart-clear committed but the stock ledger has not
	// confirmed the decrement. The outbox poller keeps retrying; the
	// order is NOT rolled back.
	ErrStockDecrementPending = errors.New("order created but stock decrement not confirmed")

	ErrInvalidTransition = errors.New("illegal order status transition")
)
