package repository

import (
	"context"
	"errors"

	"oticapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrNotFound is returned by Find* methods when no row matches.
var ErrNotFound = errors.New("record not found")

// CashSessionRepository defines the data access contract for cash sessions.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via in-memory fakes.
type CashSessionRepository interface {
	Create(ctx context.Context, s *model.CashSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	// FindOpen returns the single open session, or ErrNotFound.
	FindOpen(ctx context.Context) (*model.CashSession, error)
	// Close flips status open→closed and freezes the balance. Returns the
	// number of rows affected: 0 means the session was not open.
	Close(ctx context.Context, id uuid.UUID, closing model.CashSession) (int64, error)
	// ApplyPaymentTx atomically adds delta to current_balance and the given
	// method's total column, guarded by status='open'. A negative delta is
	// additionally guarded by current_balance >= |delta| so the drawer can
	// never go below zero. Returns rows affected.
	// Never read-modify-write: concurrent payments must not lose increments.
	ApplyPaymentTx(tx *gorm.DB, id uuid.UUID, method string, delta decimal.Decimal) (int64, error)
	List(ctx context.Context, page, limit int) ([]model.CashSession, int64, error)
	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type cashSessionRepo struct{ db *gorm.DB }

func NewCashSessionRepository(db *gorm.DB) CashSessionRepository { return &cashSessionRepo{db: db} }

func (r *cashSessionRepo) DB() *gorm.DB { return r.db }

func (r *cashSessionRepo) Create(ctx context.Context, s *model.CashSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *cashSessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *cashSessionRepo) FindOpen(ctx context.Context) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Where("status = ?", model.SessionOpen).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *cashSessionRepo) Close(ctx context.Context, id uuid.UUID, closing model.CashSession) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.CashSession{}).
		Where("id = ? AND status = ?", id, model.SessionOpen).
		Updates(map[string]interface{}{
			"status":          model.SessionClosed,
			"closing_balance": closing.ClosingBalance,
			"closed_by":       closing.ClosedBy,
			"closed_by_name":  closing.ClosedByName,
			"observations":    closing.Observations,
			"closed_at":       closing.ClosedAt,
		})
	return res.RowsAffected, res.Error
}

// totalColumns maps payment methods to their session total column. Kept in the
// repository so the SQL column names live next to the SQL that uses them.
var totalColumns = map[string]string{
	model.PaymentMethodCash:   "total_cash",
	model.PaymentMethodCredit: "total_credit",
	model.PaymentMethodDebit:  "total_debit",
	model.PaymentMethodPix:    "total_pix",
	model.PaymentMethodCheck:  "total_check",
}

func (r *cashSessionRepo) ApplyPaymentTx(tx *gorm.DB, id uuid.UUID, method string, delta decimal.Decimal) (int64, error) {
	col, ok := totalColumns[method]
	if !ok {
		return 0, errors.New("unknown payment method: " + method)
	}
	q := tx.Model(&model.CashSession{}).
		Where("id = ? AND status = ?", id, model.SessionOpen)
	if delta.IsNegative() {
		// An expense may not overdraw the drawer.
		q = q.Where("current_balance >= ?", delta.Neg())
	}
	res := q.Updates(map[string]interface{}{
		"current_balance": gorm.Expr("current_balance + ?", delta),
		col:               gorm.Expr(col+" + ?", delta),
	})
	return res.RowsAffected, res.Error
}

func (r *cashSessionRepo) List(ctx context.Context, page, limit int) ([]model.CashSession, int64, error) {
	var sessions []model.CashSession
	var total int64

	q := r.db.WithContext(ctx).Model(&model.CashSession{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := q.Order("opened_at DESC").Limit(limit).Offset(offset).Find(&sessions).Error
	return sessions, total, err
}
