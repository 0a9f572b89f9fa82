package repository

import (
	"context"
	"errors"

	"oticapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LegacyClientRepository interface {
	Create(ctx context.Context, c *model.LegacyClient) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.LegacyClient, error)
	// DecrementDebtTx applies debt = debt - amount WHERE debt >= amount as a
	// single conditional statement. Rows affected 0 means overpayment.
	DecrementDebtTx(tx *gorm.DB, id uuid.UUID, amount decimal.Decimal) (int64, error)
	CreateDebtPaymentTx(tx *gorm.DB, dp *model.DebtPayment) error
	ListDebtPayments(ctx context.Context, clientID uuid.UUID) ([]model.DebtPayment, error)
	// UpdateStatus flips the status only when the debt guard holds; used by
	// ToggleStatus to make "deactivate only at zero debt" race-free.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, requireZeroDebt bool) (int64, error)
	DB() *gorm.DB
}

type legacyClientRepo struct{ db *gorm.DB }

func NewLegacyClientRepository(db *gorm.DB) LegacyClientRepository { return &legacyClientRepo{db: db} }

func (r *legacyClientRepo) DB() *gorm.DB { return r.db }

func (r *legacyClientRepo) Create(ctx context.Context, c *model.LegacyClient) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *legacyClientRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.LegacyClient, error) {
	var c model.LegacyClient
	err := r.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (r *legacyClientRepo) DecrementDebtTx(tx *gorm.DB, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	res := tx.Model(&model.LegacyClient{}).
		Where("id = ? AND debt >= ?", id, amount).
		Update("debt", gorm.Expr("debt - ?", amount))
	return res.RowsAffected, res.Error
}

func (r *legacyClientRepo) CreateDebtPaymentTx(tx *gorm.DB, dp *model.DebtPayment) error {
	return tx.Create(dp).Error
}

func (r *legacyClientRepo) ListDebtPayments(ctx context.Context, clientID uuid.UUID) ([]model.DebtPayment, error) {
	var history []model.DebtPayment
	err := r.db.WithContext(ctx).
		Where("legacy_client_id = ?", clientID).
		Order("paid_at ASC").
		Find(&history).Error
	return history, err
}

func (r *legacyClientRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, requireZeroDebt bool) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.LegacyClient{}).Where("id = ?", id)
	if requireZeroDebt {
		q = q.Where("debt = 0")
	}
	res := q.Update("status", status)
	return res.RowsAffected, res.Error
}
