package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"min=0"`
	Observations   *string         `json:"observations"`
}

type CloseSessionRequest struct {
	SessionID      string          `json:"session_id"      validate:"required,uuid"`
	ClosingBalance decimal.Decimal `json:"closing_balance" validate:"min=0"`
	Observations   *string         `json:"observations"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MethodTotals struct {
	Cash   decimal.Decimal `json:"cash"`
	Credit decimal.Decimal `json:"credit"`
	Debit  decimal.Decimal `json:"debit"`
	Pix    decimal.Decimal `json:"pix"`
	Check  decimal.Decimal `json:"check"`
}

type SessionResponse struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	CurrentBalance decimal.Decimal  `json:"current_balance"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`
	Totals         MethodTotals     `json:"totals"`
	OpenedBy       string           `json:"opened_by"`
	OpenedByName   string           `json:"opened_by_name"`
	ClosedBy       *string          `json:"closed_by,omitempty"`
	ClosedByName   *string          `json:"closed_by_name,omitempty"`
	Observations   *string          `json:"observations,omitempty"`
	OpenedAt       string           `json:"opened_at"`
	ClosedAt       *string          `json:"closed_at,omitempty"`
}

type SessionListResponse struct {
	Data  []SessionResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// ReconcileResponse compares the stored session balance against a replay of
// the payments ledger. Drift should always be zero.
type ReconcileResponse struct {
	SessionID       string          `json:"session_id"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	Drift           decimal.Decimal `json:"drift"`
	Balanced        bool            `json:"balanced"`
	ComputedTotals  MethodTotals    `json:"computed_totals"`
	StoredTotals    MethodTotals    `json:"stored_totals"`
	Sales           decimal.Decimal `json:"sales"`
	DebtPayments    decimal.Decimal `json:"debt_payments"`
	Expenses        decimal.Decimal `json:"expenses"`
	PaymentCount    int64           `json:"payment_count"`
}
