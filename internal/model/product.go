package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product types. Only the two frame types carry stock; lenses and services are
// produced per order and never decremented.
const (
	ProductPrescriptionFrame = "prescription_frame"
	ProductSunglassesFrame   = "sunglasses_frame"
	ProductLenses            = "lenses"
	ProductCleanLenses       = "clean_lenses"
)

// Product is the stock-bearing subset of the catalog consumed by settlement.
// Settlement writes only Stock — price and descriptive fields are owned by the
// catalog service.
type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string          `gorm:"index;not null"`
	ProductType string          `gorm:"type:varchar(30);not null;index"`
	SellPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	// Stock is meaningful only for frame product types. Never negative:
	// decrements are conditional (stock >= quantity) at the storage layer.
	Stock     int  `gorm:"not null;default:0"`
	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockBearing reports whether this product's type tracks physical stock.
func (p *Product) StockBearing() bool {
	return p.ProductType == ProductPrescriptionFrame || p.ProductType == ProductSunglassesFrame
}
