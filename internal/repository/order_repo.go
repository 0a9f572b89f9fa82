package repository

import (
	"context"
	"errors"

	"oticapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// FindByIDTx reads the order inside the caller's transaction.
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Order, error)
	// SetStockCommittedTx flips the settlement idempotency flag from→to.
	// Rows affected 0 means the flag was already in the target state — the
	// caller treats that as "someone else settled/reversed first".
	SetStockCommittedTx(tx *gorm.DB, id uuid.UUID, from, to bool) (int64, error)
	UpdatePaymentStatusTx(tx *gorm.DB, id uuid.UUID, status string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	DB() *gorm.DB
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func (r *orderRepo) DB() *gorm.DB { return r.db }

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Preload("Items.Product").First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &o, err
}

func (r *orderRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := tx.Preload("Items.Product").First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &o, err
}

func (r *orderRepo) SetStockCommittedTx(tx *gorm.DB, id uuid.UUID, from, to bool) (int64, error) {
	res := tx.Model(&model.Order{}).
		Where("id = ? AND stock_committed = ?", id, from).
		Update("stock_committed", to)
	return res.RowsAffected, res.Error
}

func (r *orderRepo) UpdatePaymentStatusTx(tx *gorm.DB, id uuid.UUID, status string) error {
	return tx.Model(&model.Order{}).Where("id = ?", id).Update("payment_status", status).Error
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Update("status", status).Error
}
