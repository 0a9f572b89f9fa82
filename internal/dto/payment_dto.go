package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RecordPaymentRequest struct {
	Type   string          `json:"type"   validate:"required,oneof=sale debt_payment expense"`
	Method string          `json:"method" validate:"required,oneof=cash credit debit pix check"`
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	// Exactly one of order_id / legacy_client_id for sale / debt_payment;
	// neither for expense. Cross-field rule checked in the service.
	OrderID        *string `json:"order_id"         validate:"omitempty,uuid"`
	LegacyClientID *string `json:"legacy_client_id" validate:"omitempty,uuid"`
	Description    string  `json:"description"`
}

// GatewayCallbackRequest is the body the online-payment gateway posts once a
// pending payment is confirmed or declined on its side.
type GatewayCallbackRequest struct {
	PaymentID string `json:"payment_id" validate:"required,uuid"`
	Result    string `json:"result"     validate:"required,oneof=approved declined"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PaymentResponse struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Method         string          `json:"method"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	CashSessionID  string          `json:"cash_session_id"`
	OrderID        *string         `json:"order_id,omitempty"`
	LegacyClientID *string         `json:"legacy_client_id,omitempty"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

type PaymentListResponse struct {
	Data  []PaymentResponse `json:"data"`
	Total int               `json:"total"`
}
