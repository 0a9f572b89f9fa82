package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Business-rule violations surfaced verbatim to the caller. None of these is
// retried automatically except ErrConcurrencyConflict, which withRetry handles
// internally before giving up.
var (
	ErrSessionAlreadyOpen   = errors.New("a cash session is already open")
	ErrSessionNotOpen       = errors.New("cash session is not the currently open one")
	ErrSessionAlreadyClosed = errors.New("cash session is already closed")
	ErrSessionNotFound      = errors.New("cash session not found")
	ErrNoOpenSession        = errors.New("no cash session is open")
	ErrOverpayment          = errors.New("payment exceeds the outstanding debt")
	ErrInsufficientFunds    = errors.New("expense exceeds the session balance")
	ErrOutstandingDebt      = errors.New("legacy client still has outstanding debt")
	ErrConcurrencyConflict  = errors.New("concurrent write conflict, all retries exhausted")
	ErrOperationTimeout     = errors.New("operation exceeded its deadline")
	ErrPaymentNotPending    = errors.New("payment is not pending")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderCancelled       = errors.New("order is cancelled")
	ErrClientNotFound       = errors.New("legacy client not found")
	ErrInvalidAttribution   = errors.New("payment attribution does not match its type")
	ErrInsufficientStock    = errors.New("insufficient stock")
)

// InsufficientStockError identifies which product blocked a settlement.
// errors.Is(err, ErrInsufficientStock) matches it.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
