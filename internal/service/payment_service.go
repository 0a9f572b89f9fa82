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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentService is the single writer of CashSession.currentBalance and of
// LegacyClient.debt. Payments are append-only: corrections are compensating
// entries, never in-place mutation of a completed payment.
type PaymentService interface {
	Record(ctx context.Context, operatorID uuid.UUID, req dto.RecordPaymentRequest) (*dto.PaymentResponse, error)
	// Confirm resolves a pending gateway payment: approved applies the balance
	// (and debt) effects, declined cancels with no effect.
	Confirm(ctx context.Context, paymentID uuid.UUID, approved bool) (*dto.PaymentResponse, error)
	Cancel(ctx context.Context, paymentID uuid.UUID) (*dto.PaymentResponse, error)
	// Reconcile replays a session's payments and compares against the stored
	// balance. Integrity verification only — it never mutates anything.
	Reconcile(ctx context.Context, sessionID uuid.UUID) (*dto.ReconcileResponse, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) (*dto.PaymentListResponse, error)
	// RecordSaleTx creates a completed sale payment and applies its balance
	// effect inside the caller's transaction. Used by settlement so the stock
	// commit and the payment share one atomic unit.
	RecordSaleTx(tx *gorm.DB, session *model.CashSession, order *model.Order, operatorID uuid.UUID, method string, amount decimal.Decimal) (*model.Payment, error)
}

type paymentService struct {
	repo        repository.PaymentRepository
	sessionRepo repository.CashSessionRepository
	orderRepo   repository.OrderRepository
	debt        DebtService
	// gatewayMethods create the payment pending; the balance is applied only
	// on gateway confirmation.
	gatewayMethods map[string]bool
	timeout        time.Duration
}

func NewPaymentService(
	repo repository.PaymentRepository,
	sessionRepo repository.CashSessionRepository,
	orderRepo repository.OrderRepository,
	debt DebtService,
	gatewayMethods []string,
	timeout time.Duration,
) PaymentService {
	methods := make(map[string]bool, len(gatewayMethods))
	for _, m := range gatewayMethods {
		methods[m] = true
	}
	return &paymentService{
		repo:           repo,
		sessionRepo:    sessionRepo,
		orderRepo:      orderRepo,
		debt:           debt,
		gatewayMethods: methods,
		timeout:        timeout,
	}
}

func (s *paymentService) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ── Record ────────────────────────────────────────────────────────────────────

func (s *paymentService) Record(ctx context.Context, operatorID uuid.UUID, req dto.RecordPaymentRequest) (*dto.PaymentResponse, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	orderID, clientID, err := parseAttribution(req)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindOpen(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoOpenSession
		}
		return nil, err
	}

	// Pre-flight reads keep obvious rejections out of the transaction; the
	// conditional updates inside it remain the authority under races.
	if orderID != nil {
		if _, err := s.orderRepo.FindByID(ctx, *orderID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrOrderNotFound
			}
			return nil, err
		}
	}
	if clientID != nil {
		balance, err := s.debt.GetBalance(ctx, *clientID)
		if err != nil {
			return nil, err
		}
		if req.Amount.GreaterThan(balance.Debt) {
			return nil, ErrOverpayment
		}
	}
	if req.Type == model.PaymentTypeExpense && req.Amount.GreaterThan(session.CurrentBalance) {
		return nil, ErrInsufficientFunds
	}

	payment := &model.Payment{
		Type:           req.Type,
		Method:         req.Method,
		Amount:         req.Amount,
		Status:         model.PaymentCompleted,
		CashSessionID:  session.ID,
		OrderID:        orderID,
		LegacyClientID: clientID,
		RecordedBy:     operatorID,
		Description:    req.Description,
	}
	if s.gatewayMethods[req.Method] {
		payment.Status = model.PaymentPending
	}

	txErr := withRetry(ctx, "payment.record", func() error {
		return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
			if err := s.repo.CreateTx(tx, payment); err != nil {
				return err
			}
			if payment.Status != model.PaymentCompleted {
				// Pending gateway payment: recorded for audit, no balance
				// effect until the confirmation callback arrives.
				return nil
			}
			return s.applyEffectsTx(tx, payment)
		})
	})
	if txErr != nil {
		return nil, txErr
	}
	s.invalidateDebtCache(ctx, payment)
	return paymentToResponse(payment), nil
}

// invalidateDebtCache drops the client's cached balance once a debt payment
// has committed. Doing it after the transaction — not inside it — keeps a
// concurrent read from re-caching the pre-payment debt in the window before
// commit.
func (s *paymentService) invalidateDebtCache(ctx context.Context, payment *model.Payment) {
	if payment.Type == model.PaymentTypeDebt && payment.Status == model.PaymentCompleted && payment.LegacyClientID != nil {
		s.debt.InvalidateBalance(ctx, *payment.LegacyClientID)
	}
}

// applyEffectsTx applies a completed payment's balance, debt, and order-status
// effects inside tx. The session increment is a single conditional UPDATE
// guarded by status='open' — and by a current_balance floor for expenses — so
// a concurrently closed session, or an expense racing the drawer below zero,
// aborts the whole transaction instead of mutating a frozen or negative
// balance.
func (s *paymentService) applyEffectsTx(tx *gorm.DB, payment *model.Payment) error {
	delta := payment.SignedAmount()
	rows, err := s.sessionRepo.ApplyPaymentTx(tx, payment.CashSessionID, payment.Method, delta)
	if err != nil {
		return err
	}
	if rows == 0 {
		// The pre-flight read already filtered obvious rejections, so a failed
		// guard here is the race it protects against: for an expense that is
		// the balance floor, otherwise the session closing underneath us.
		if delta.IsNegative() {
			return ErrInsufficientFunds
		}
		return ErrNoOpenSession
	}
	if payment.Type == model.PaymentTypeDebt && payment.LegacyClientID != nil {
		if err := s.debt.ApplyPaymentTx(tx, *payment.LegacyClientID, payment); err != nil {
			return err
		}
	}
	if payment.Type == model.PaymentTypeSale && payment.OrderID != nil {
		if err := s.refreshOrderPaymentStatusTx(tx, *payment.OrderID, payment); err != nil {
			return err
		}
	}
	return nil
}

// refreshOrderPaymentStatusTx recomputes the order's pending/partial/paid flag
// from the completed payments attributed to it plus the one being applied.
// Reads go through tx so a concurrent sale payment on the same order is either
// visible or ordered behind us — never silently missing from the sum.
func (s *paymentService) refreshOrderPaymentStatusTx(tx *gorm.DB, orderID uuid.UUID, current *model.Payment) error {
	order, err := s.orderRepo.FindByIDTx(tx, orderID)
	if err != nil {
		return err
	}
	prior, err := s.repo.FindByOrderIDTx(tx, orderID)
	if err != nil {
		return err
	}
	paid := current.Amount
	for _, p := range prior {
		if p.Status == model.PaymentCompleted && p.ID != current.ID {
			paid = paid.Add(p.Amount)
		}
	}
	status := model.OrderPaymentPartial
	if paid.GreaterThanOrEqual(order.FinalPrice) {
		status = model.OrderPaymentPaid
	}
	return s.orderRepo.UpdatePaymentStatusTx(tx, orderID, status)
}

// ── Confirm / Cancel ─────────────────────────────────────────────────────────

func (s *paymentService) Confirm(ctx context.Context, paymentID uuid.UUID, approved bool) (*dto.PaymentResponse, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.Status != model.PaymentPending {
		return nil, ErrPaymentNotPending
	}

	if !approved {
		return s.flipPending(ctx, payment, model.PaymentCancelled)
	}

	txErr := withRetry(ctx, "payment.confirm", func() error {
		return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
			rows, err := s.repo.UpdateStatusTx(tx, payment.ID, model.PaymentPending, model.PaymentCompleted)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrPaymentNotPending
			}
			payment.Status = model.PaymentCompleted
			if err := s.applyEffectsTx(tx, payment); err != nil {
				// Session already closed: the confirmation arrived too late.
				// The payment stays pending; the operator resolves it with a
				// manual entry in the next session.
				if errors.Is(err, ErrNoOpenSession) {
					return ErrSessionAlreadyClosed
				}
				return err
			}
			return nil
		})
	})
	if txErr != nil {
		if errors.Is(txErr, ErrSessionAlreadyClosed) {
			payment.Status = model.PaymentPending
		}
		return nil, txErr
	}
	s.invalidateDebtCache(ctx, payment)
	return paymentToResponse(payment), nil
}

func (s *paymentService) Cancel(ctx context.Context, paymentID uuid.UUID) (*dto.PaymentResponse, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	// Only pending payments can be cancelled — nothing was applied yet, so
	// there is nothing to reverse. Completed payments get compensating entries.
	if payment.Status != model.PaymentPending {
		return nil, ErrPaymentNotPending
	}
	return s.flipPending(ctx, payment, model.PaymentCancelled)
}

func (s *paymentService) flipPending(ctx context.Context, payment *model.Payment, to string) (*dto.PaymentResponse, error) {
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateStatusTx(tx, payment.ID, model.PaymentPending, to)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPaymentNotPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	payment.Status = to
	return paymentToResponse(payment), nil
}

// ── RecordSaleTx ─────────────────────────────────────────────────────────────

func (s *paymentService) RecordSaleTx(tx *gorm.DB, session *model.CashSession, order *model.Order, operatorID uuid.UUID, method string, amount decimal.Decimal) (*model.Payment, error) {
	orderID := order.ID
	payment := &model.Payment{
		Type:          model.PaymentTypeSale,
		Method:        method,
		Amount:        amount,
		Status:        model.PaymentCompleted,
		CashSessionID: session.ID,
		OrderID:       &orderID,
		RecordedBy:    operatorID,
		Description:   fmt.Sprintf("Settlement of order %s", orderID),
	}
	if err := s.repo.CreateTx(tx, payment); err != nil {
		return nil, err
	}
	if err := s.applyEffectsTx(tx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// ── Reconcile / List ─────────────────────────────────────────────────────────

func (s *paymentService) Reconcile(ctx context.Context, sessionID uuid.UUID) (*dto.ReconcileResponse, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	sums, err := s.repo.SumBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	computed := session.OpeningBalance.Add(sums.Sales).Add(sums.Debt).Sub(sums.Expenses)
	drift := session.CurrentBalance.Sub(computed)

	computedTotals := dto.MethodTotals{
		Cash:   sums.ByMethod[model.PaymentMethodCash],
		Credit: sums.ByMethod[model.PaymentMethodCredit],
		Debit:  sums.ByMethod[model.PaymentMethodDebit],
		Pix:    sums.ByMethod[model.PaymentMethodPix],
		Check:  sums.ByMethod[model.PaymentMethodCheck],
	}
	storedTotals := sessionTotals(session)

	return &dto.ReconcileResponse{
		SessionID:       session.ID.String(),
		StoredBalance:   session.CurrentBalance,
		ComputedBalance: computed,
		Drift:           drift,
		Balanced:        drift.IsZero() && totalsEqual(storedTotals, computedTotals),
		ComputedTotals:  computedTotals,
		StoredTotals:    storedTotals,
		Sales:           sums.Sales,
		DebtPayments:    sums.Debt,
		Expenses:        sums.Expenses,
		PaymentCount:    sums.Count,
	}, nil
}

func (s *paymentService) ListBySession(ctx context.Context, sessionID uuid.UUID) (*dto.PaymentListResponse, error) {
	payments, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, *paymentToResponse(&payments[i]))
	}
	return &dto.PaymentListResponse{Data: items, Total: len(items)}, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// parseAttribution enforces: sale → order_id, debt_payment → legacy_client_id,
// expense → neither.
func parseAttribution(req dto.RecordPaymentRequest) (*uuid.UUID, *uuid.UUID, error) {
	switch req.Type {
	case model.PaymentTypeSale:
		if req.OrderID == nil || req.LegacyClientID != nil {
			return nil, nil, ErrInvalidAttribution
		}
		id, err := uuid.Parse(*req.OrderID)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid order_id: %w", err)
		}
		return &id, nil, nil
	case model.PaymentTypeDebt:
		if req.LegacyClientID == nil || req.OrderID != nil {
			return nil, nil, ErrInvalidAttribution
		}
		id, err := uuid.Parse(*req.LegacyClientID)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid legacy_client_id: %w", err)
		}
		return nil, &id, nil
	case model.PaymentTypeExpense:
		if req.OrderID != nil || req.LegacyClientID != nil {
			return nil, nil, ErrInvalidAttribution
		}
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown payment type %q", req.Type)
}

func sessionTotals(s *model.CashSession) dto.MethodTotals {
	return dto.MethodTotals{
		Cash:   s.TotalCash,
		Credit: s.TotalCredit,
		Debit:  s.TotalDebit,
		Pix:    s.TotalPix,
		Check:  s.TotalCheck,
	}
}

func totalsEqual(a, b dto.MethodTotals) bool {
	return a.Cash.Equal(b.Cash) && a.Credit.Equal(b.Credit) && a.Debit.Equal(b.Debit) &&
		a.Pix.Equal(b.Pix) && a.Check.Equal(b.Check)
}

func paymentToResponse(p *model.Payment) *dto.PaymentResponse {
	resp := &dto.PaymentResponse{
		ID:            p.ID.String(),
		Type:          p.Type,
		Method:        p.Method,
		Amount:        p.Amount,
		Status:        p.Status,
		CashSessionID: p.CashSessionID.String(),
		Description:   p.Description,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
	if p.OrderID != nil {
		id := p.OrderID.String()
		resp.OrderID = &id
	}
	if p.LegacyClientID != nil {
		id := p.LegacyClientID.String()
		resp.LegacyClientID = &id
	}
	return resp
}
