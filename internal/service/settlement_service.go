package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oticapos/internal/dto"
	"oticapos/internal/model"
	"oticapos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SettlementService makes "order confirmed → stock decremented → payment
// recorded" appear atomic to external observers and safe to retry. The
// idempotency gate is Order.StockCommitted, flipped by a guarded UPDATE; the
// stock check-and-decrement is a single conditional statement per line.
type SettlementService interface {
	Settle(ctx context.Context, operatorID uuid.UUID, orderID uuid.UUID, charge *dto.ChargeRequest) (*dto.SettlementResult, error)
	// Reverse restores stock after a cancellation of a previously settled
	// order. Calling it twice, or on a never-settled order, is a no-op.
	Reverse(ctx context.Context, orderID uuid.UUID) error
}

type settlementService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	stockMoves  repository.StockMovementRepository
	sessionRepo repository.CashSessionRepository
	payments    PaymentService
	timeout     time.Duration
}

func NewSettlementService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	stockMoves repository.StockMovementRepository,
	sessionRepo repository.CashSessionRepository,
	payments PaymentService,
	timeout time.Duration,
) SettlementService {
	return &settlementService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		stockMoves:  stockMoves,
		sessionRepo: sessionRepo,
		payments:    payments,
		timeout:     timeout,
	}
}

func (s *settlementService) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ── Settle ───────────────────────────────────────────────────────────────────
// One transaction:
//  1. Flip stock_committed false→true. Zero rows means a prior (or concurrent)
//     settlement already committed — return no-op success, never decrement twice.
//  2. Per stock-bearing line: conditional decrement; zero rows means
//     insufficient stock and rolls the whole transaction back.
//  3. Record a stock movement per line.
//  4. Optionally record the sale payment in the same transaction.

func (s *settlementService) Settle(ctx context.Context, operatorID uuid.UUID, orderID uuid.UUID, charge *dto.ChargeRequest) (*dto.SettlementResult, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.Status == model.OrderCancelled {
		return nil, ErrOrderCancelled
	}
	if order.StockCommitted {
		return &dto.SettlementResult{OrderID: orderID.String(), AlreadySettled: true}, nil
	}

	// Pre-flight availability check. Cheap rejection before any write; the
	// conditional decrements inside the transaction remain the authority when
	// a concurrent settlement races past this read.
	for _, item := range order.Items {
		if item.Product == nil || !item.Product.StockBearing() {
			continue
		}
		if item.Product.Stock < item.Quantity {
			return nil, &InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: item.Product.Stock,
			}
		}
	}

	var session *model.CashSession
	if charge != nil {
		session, err = s.sessionRepo.FindOpen(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNoOpenSession
			}
			return nil, err
		}
	}

	result := &dto.SettlementResult{OrderID: orderID.String()}

	txErr := withRetry(ctx, "settlement.settle", func() error {
		result.Lines = nil
		result.Payment = nil
		return runTx(ctx, s.orderRepo.DB(), func(tx *gorm.DB) error {
			rows, err := s.orderRepo.SetStockCommittedTx(tx, orderID, false, true)
			if err != nil {
				return err
			}
			if rows == 0 {
				result.AlreadySettled = true
				return nil
			}

			for _, item := range order.Items {
				if item.Product == nil || !item.Product.StockBearing() {
					continue
				}
				before, err := s.snapshotStockTx(tx, item.ProductID, item.Product)
				if err != nil {
					return err
				}
				affected, err := s.productRepo.DecrementStockTx(tx, item.ProductID, item.Quantity)
				if err != nil {
					return err
				}
				if affected == 0 {
					return &InsufficientStockError{
						ProductID: item.ProductID,
						Requested: item.Quantity,
						Available: before,
					}
				}
				after := before - item.Quantity
				ref := orderID
				if err := s.stockMoves.CreateTx(tx, &model.StockMovement{
					ProductID:   item.ProductID,
					Type:        model.StockMoveSettlement,
					Quantity:    -item.Quantity,
					StockBefore: before,
					StockAfter:  after,
					Reason:      fmt.Sprintf("Settlement of order %s", orderID),
					ReferenceID: &ref,
				}); err != nil {
					return err
				}
				result.Lines = append(result.Lines, dto.SettledLine{
					ProductID:  item.ProductID.String(),
					Quantity:   item.Quantity,
					StockAfter: after,
				})
			}

			if charge != nil {
				payment, err := s.payments.RecordSaleTx(tx, session, order, operatorID, charge.Method, charge.Amount)
				if err != nil {
					return err
				}
				result.Payment = paymentToResponse(payment)
			}
			return nil
		})
	})
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// snapshotStockTx reads the current stock inside the transaction for the audit
// row; falls back to the pre-flight read when no transactional store exists.
func (s *settlementService) snapshotStockTx(tx *gorm.DB, productID uuid.UUID, preloaded *model.Product) (int, error) {
	p, err := s.productRepo.FindByIDTx(tx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) && preloaded != nil {
			return preloaded.Stock, nil
		}
		return 0, err
	}
	return p.Stock, nil
}

// ── Reverse ──────────────────────────────────────────────────────────────────

func (s *settlementService) Reverse(ctx context.Context, orderID uuid.UUID) error {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	return withRetry(ctx, "settlement.reverse", func() error {
		return runTx(ctx, s.orderRepo.DB(), func(tx *gorm.DB) error {
			rows, err := s.orderRepo.SetStockCommittedTx(tx, orderID, true, false)
			if err != nil {
				return err
			}
			if rows == 0 {
				// Never settled, or already reversed. Restoring again would
				// double-apply stock, so this is a silent no-op.
				return nil
			}

			for _, item := range order.Items {
				if item.Product == nil || !item.Product.StockBearing() {
					continue
				}
				before, err := s.snapshotStockTx(tx, item.ProductID, item.Product)
				if err != nil {
					return err
				}
				if err := s.productRepo.IncrementStockTx(tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
				ref := orderID
				if err := s.stockMoves.CreateTx(tx, &model.StockMovement{
					ProductID:   item.ProductID,
					Type:        model.StockMoveReversal,
					Quantity:    item.Quantity,
					StockBefore: before,
					StockAfter:  before + item.Quantity,
					Reason:      fmt.Sprintf("Reversal of order %s", orderID),
					ReferenceID: &ref,
				}); err != nil {
					return err
				}
			}
			return nil
		})
	})
}
