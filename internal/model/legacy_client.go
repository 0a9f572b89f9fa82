package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Legacy client statuses.
const (
	LegacyClientActive   = "active"
	LegacyClientInactive = "inactive"
)

// LegacyClient tracks a customer whose debt predates the system. Debt is a
// denormalized summary for fast reads; the authoritative history lives in
// debt_payments. Invariant: Debt = TotalDebt - SUM(debt_payments.amount),
// never negative. Debt is mutated only by the payment ledger, via a
// conditional decrement.
type LegacyClient struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string          `gorm:"index;not null"`
	Phone     *string
	TotalDebt decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Debt      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Status may only become "inactive" when Debt = 0.
	Status    string `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DebtPayment is one applied payment against a legacy client's balance.
// Stored as independent rows keyed by client id rather than embedded in the
// client record, so history growth never bloats the hot client row.
type DebtPayment struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LegacyClientID uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID      uuid.UUID       `gorm:"type:uuid;not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaidAt         time.Time
}
