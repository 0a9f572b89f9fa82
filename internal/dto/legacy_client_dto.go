package dto

import "github.com/shopspring/decimal"

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DebtBalanceResponse struct {
	LegacyClientID string          `json:"legacy_client_id"`
	Debt           decimal.Decimal `json:"debt"`
	TotalDebt      decimal.Decimal `json:"total_debt"`
	Status         string          `json:"status"`
}

type DebtPaymentEntry struct {
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    string          `json:"paid_at"`
}

type DebtHistoryResponse struct {
	LegacyClientID string             `json:"legacy_client_id"`
	Debt           decimal.Decimal    `json:"debt"`
	TotalDebt      decimal.Decimal    `json:"total_debt"`
	History        []DebtPaymentEntry `json:"history"`
}
