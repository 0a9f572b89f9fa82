package repository

import (
	"context"
	"errors"
	"time"

	"oticapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SessionSums aggregates the completed payments of a session, replayed straight
// from the payments table. Used by reconciliation.
type SessionSums struct {
	ByMethod map[string]decimal.Decimal
	Sales    decimal.Decimal
	Debt     decimal.Decimal
	Expenses decimal.Decimal
	Count    int64
}

type PaymentRepository interface {
	CreateTx(tx *gorm.DB, p *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	// FindByOrderIDTx reads the order's payments inside the caller's
	// transaction, so derived-state recomputation sees its own writes.
	FindByOrderIDTx(tx *gorm.DB, orderID uuid.UUID) ([]model.Payment, error)
	// UpdateStatusTx flips status from→to, guarded so that a payment can leave
	// the pending state exactly once. Returns rows affected.
	UpdateStatusTx(tx *gorm.DB, id uuid.UUID, from, to string) (int64, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Payment, error)
	// ListStuckPending returns pending payments created before cutoff — gateway
	// confirmations that never arrived. Consumed by the pending reaper.
	ListStuckPending(ctx context.Context, cutoff time.Time, limit int) ([]model.Payment, error)
	// SumBySession replays completed payments in creation order.
	SumBySession(ctx context.Context, sessionID uuid.UUID) (*SessionSums, error)
	DB() *gorm.DB
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) DB() *gorm.DB { return r.db }

func (r *paymentRepo) CreateTx(tx *gorm.DB, p *model.Payment) error {
	return tx.Create(p).Error
}

func (r *paymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *paymentRepo) FindByOrderIDTx(tx *gorm.DB, orderID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := tx.Where("order_id = ?", orderID).Order("created_at ASC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) UpdateStatusTx(tx *gorm.DB, id uuid.UUID, from, to string) (int64, error) {
	res := tx.Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *paymentRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("cash_session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) ListStuckPending(ctx context.Context, cutoff time.Time, limit int) ([]model.Payment, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.PaymentPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) SumBySession(ctx context.Context, sessionID uuid.UUID) (*SessionSums, error) {
	payments, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sums := &SessionSums{ByMethod: map[string]decimal.Decimal{
		model.PaymentMethodCash:   decimal.Zero,
		model.PaymentMethodCredit: decimal.Zero,
		model.PaymentMethodDebit:  decimal.Zero,
		model.PaymentMethodPix:    decimal.Zero,
		model.PaymentMethodCheck:  decimal.Zero,
	}}
	for _, p := range payments {
		if p.Status != model.PaymentCompleted {
			continue
		}
		sums.Count++
		sums.ByMethod[p.Method] = sums.ByMethod[p.Method].Add(p.SignedAmount())
		switch p.Type {
		case model.PaymentTypeSale:
			sums.Sales = sums.Sales.Add(p.Amount)
		case model.PaymentTypeDebt:
			sums.Debt = sums.Debt.Add(p.Amount)
		case model.PaymentTypeExpense:
			sums.Expenses = sums.Expenses.Add(p.Amount)
		}
	}
	return sums, nil
}
