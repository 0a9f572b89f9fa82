package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	OrderPending      = "pending"
	OrderInProduction = "in_production"
	OrderReady        = "ready"
	OrderDelivered    = "delivered"
	OrderCancelled    = "cancelled"
)

// Order payment statuses.
const (
	OrderPaymentPending = "pending"
	OrderPaymentPartial = "partial"
	OrderPaymentPaid    = "paid"
)

// Order is created by the external order workflow; this core owns only the
// settlement-relevant fields: the line items, StockCommitted, and PaymentStatus.
type Order struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CustomerID *uuid.UUID      `gorm:"type:uuid;index"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Discount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// FinalPrice = TotalPrice - Discount.
	FinalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaymentStatus string          `gorm:"type:varchar(20);not null;default:'pending'"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending'"`
	// StockCommitted is the idempotency flag for settlement: flipped exactly
	// once by Settle, back exactly once by Reverse. The guarded flip is what
	// makes retries and concurrent invocations safe.
	StockCommitted bool `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

// OrderItem is one product line of an order.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}
