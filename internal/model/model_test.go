package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSignedAmount(t *testing.T) {
	amount := decimal.RequireFromString("25.00")

	sale := Payment{Type: PaymentTypeSale, Amount: amount}
	assert.True(t, sale.SignedAmount().Equal(amount))

	debt := Payment{Type: PaymentTypeDebt, Amount: amount}
	assert.True(t, debt.SignedAmount().Equal(amount))

	expense := Payment{Type: PaymentTypeExpense, Amount: amount}
	assert.True(t, expense.SignedAmount().Equal(amount.Neg()))
}

func TestStockBearing(t *testing.T) {
	cases := map[string]bool{
		ProductPrescriptionFrame: true,
		ProductSunglassesFrame:   true,
		ProductLenses:            false,
		ProductCleanLenses:       false,
	}
	for productType, want := range cases {
		p := Product{ProductType: productType}
		assert.Equal(t, want, p.StockBearing(), productType)
	}
}

func TestMethodTotal(t *testing.T) {
	s := CashSession{
		TotalCash: decimal.RequireFromString("10.00"),
		TotalPix:  decimal.RequireFromString("5.00"),
	}
	assert.True(t, s.MethodTotal(PaymentMethodCash).Equal(decimal.RequireFromString("10.00")))
	assert.True(t, s.MethodTotal(PaymentMethodPix).Equal(decimal.RequireFromString("5.00")))
	assert.True(t, s.MethodTotal(PaymentMethodCheck).IsZero())
	assert.True(t, s.MethodTotal("unknown").IsZero())
}
