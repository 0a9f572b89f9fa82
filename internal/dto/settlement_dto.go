package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// SettleOrderRequest optionally carries a charge: when present, the sale
// payment is recorded inside the same transaction as the stock commit, so a
// crash between the two cannot leave stock decremented with no payment.
type SettleOrderRequest struct {
	Charge *ChargeRequest `json:"charge" validate:"omitempty"`
}

type ChargeRequest struct {
	Method string          `json:"method" validate:"required,oneof=cash credit debit pix check"`
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SettledLine struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	StockAfter int    `json:"stock_after"`
}

type SettlementResult struct {
	OrderID string `json:"order_id"`
	// AlreadySettled is true when this call was an idempotent no-op: a prior
	// settlement had committed the stock and nothing was decremented again.
	AlreadySettled bool             `json:"already_settled"`
	Lines          []SettledLine    `json:"lines"`
	Payment        *PaymentResponse `json:"payment,omitempty"`
}
