package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session status values.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// CashSession represents one bounded accounting period of the cash register.
// Status: "open" | "closed". At most one session is open at any time — enforced
// by a partial unique index on (status) WHERE status = 'open'.
type CashSession struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Status         string          `gorm:"type:varchar(20);not null;default:'open'"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// CurrentBalance is mutated ONLY via atomic SQL increments issued by the
	// payment ledger; it is frozen when the session closes.
	CurrentBalance decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// ClosingBalance is the operator's declared count at close. Recorded for
	// audit; it never retroactively alters payment records.
	ClosingBalance *decimal.Decimal `gorm:"type:decimal(12,2)"`

	// Per-method running totals for completed payments.
	TotalCash   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalCredit decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalDebit  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalPix    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalCheck  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	OpenedBy     uuid.UUID  `gorm:"type:uuid;not null"`
	OpenedByName string     `gorm:"not null"`
	ClosedBy     *uuid.UUID `gorm:"type:uuid"`
	ClosedByName *string

	Observations *string
	OpenedAt     time.Time
	ClosedAt     *time.Time

	Payments []Payment `gorm:"foreignKey:CashSessionID"`
}

// MethodTotal returns the running total for a payment method.
func (s *CashSession) MethodTotal(method string) decimal.Decimal {
	switch method {
	case PaymentMethodCash:
		return s.TotalCash
	case PaymentMethodCredit:
		return s.TotalCredit
	case PaymentMethodDebit:
		return s.TotalDebit
	case PaymentMethodPix:
		return s.TotalPix
	case PaymentMethodCheck:
		return s.TotalCheck
	}
	return decimal.Zero
}
