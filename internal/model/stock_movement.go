package model

import (
	"time"

	"github.com/google/uuid"
)

// Stock movement types.
const (
	StockMoveSettlement = "settlement"
	StockMoveReversal   = "reversal"
	StockMoveManual     = "manual_adjust"
)

// StockMovement records every stock change on a product. Created automatically
// by settlement and reversal; the audit trail that makes balance drift
// diagnosable without out-of-band repair scripts.
type StockMovement struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Type        string    `gorm:"not null"`
	Quantity    int       `gorm:"not null"` // positive = inbound, negative = outbound
	StockBefore int       `gorm:"not null"`
	StockAfter  int       `gorm:"not null"`
	Reason      string
	// ReferenceID links to the originating order when applicable.
	ReferenceID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// TableName overrides GORM's default pluralization.
func (StockMovement) TableName() string { return "stock_movements" }
