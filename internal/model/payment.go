package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment types.
const (
	PaymentTypeSale    = "sale"
	PaymentTypeDebt    = "debt_payment"
	PaymentTypeExpense = "expense"
)

// Payment methods.
const (
	PaymentMethodCash   = "cash"
	PaymentMethodCredit = "credit"
	PaymentMethodDebit  = "debit"
	PaymentMethodPix    = "pix"
	PaymentMethodCheck  = "check"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentCancelled = "cancelled"
)

// Payment is an immutable event in the monetary ledger. Completed payments are
// never modified or deleted — corrections create compensating entries.
// Pending payments (gateway methods awaiting confirmation) have not touched the
// session balance yet and may still be cancelled.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Type          string          `gorm:"type:varchar(20);not null"`
	Method        string          `gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status        string          `gorm:"type:varchar(20);not null;default:'completed'"`
	CashSessionID uuid.UUID       `gorm:"type:uuid;not null;index:idx_payments_session_created,priority:1"`
	// Exactly one of OrderID / LegacyClientID is set unless Type is expense.
	OrderID        *uuid.UUID `gorm:"type:uuid;index"`
	LegacyClientID *uuid.UUID `gorm:"type:uuid;index"`
	RecordedBy     uuid.UUID  `gorm:"type:uuid;not null"`
	Description    string     `gorm:"not null"`
	CreatedAt      time.Time  `gorm:"index:idx_payments_session_created,priority:2"`
}

// SignedAmount is the balance delta this payment applies when completed:
// received money is positive, expenses are negative.
func (p *Payment) SignedAmount() decimal.Decimal {
	if p.Type == PaymentTypeExpense {
		return p.Amount.Neg()
	}
	return p.Amount
}
