package service_test

// In-memory repository fakes. Every mutating method takes the same lock the
// real storage layer would serialize on, so the conditional-update semantics
// (rows affected 0 on a failed guard) survive concurrent test traffic.

import (
	"context"
	"sync"
	"time"

	"oticapos/internal/model"
	"oticapos/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── CashSessionRepository ────────────────────────────────────────────────────

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.CashSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*model.CashSession)}
}

func (r *fakeSessionRepo) DB() *gorm.DB { return nil }

func (r *fakeSessionRepo) Create(_ context.Context, s *model.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Emulate the partial unique index on status='open'.
	if s.Status == model.SessionOpen {
		for _, existing := range r.sessions {
			if existing.Status == model.SessionOpen {
				return &pgconn.PgError{Code: "23505", ConstraintName: "uni_cash_sessions_open"}
			}
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	copied := *s
	r.sessions[s.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) FindOpen(_ context.Context) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Status == model.SessionOpen {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSessionRepo) Close(_ context.Context, id uuid.UUID, closing model.CashSession) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != model.SessionOpen {
		return 0, nil
	}
	s.Status = model.SessionClosed
	s.ClosingBalance = closing.ClosingBalance
	s.ClosedBy = closing.ClosedBy
	s.ClosedByName = closing.ClosedByName
	s.Observations = closing.Observations
	s.ClosedAt = closing.ClosedAt
	return 1, nil
}

func (r *fakeSessionRepo) ApplyPaymentTx(_ *gorm.DB, id uuid.UUID, method string, delta decimal.Decimal) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != model.SessionOpen {
		return 0, nil
	}
	// Emulate the balance floor guard on expenses.
	if delta.IsNegative() && s.CurrentBalance.LessThan(delta.Neg()) {
		return 0, nil
	}
	s.CurrentBalance = s.CurrentBalance.Add(delta)
	switch method {
	case model.PaymentMethodCash:
		s.TotalCash = s.TotalCash.Add(delta)
	case model.PaymentMethodCredit:
		s.TotalCredit = s.TotalCredit.Add(delta)
	case model.PaymentMethodDebit:
		s.TotalDebit = s.TotalDebit.Add(delta)
	case model.PaymentMethodPix:
		s.TotalPix = s.TotalPix.Add(delta)
	case model.PaymentMethodCheck:
		s.TotalCheck = s.TotalCheck.Add(delta)
	}
	return 1, nil
}

func (r *fakeSessionRepo) List(_ context.Context, page, limit int) ([]model.CashSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.CashSession
	for _, s := range r.sessions {
		all = append(all, *s)
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// ── PaymentRepository ────────────────────────────────────────────────────────

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments []*model.Payment
}

func newFakePaymentRepo() *fakePaymentRepo { return &fakePaymentRepo{} }

func (r *fakePaymentRepo) DB() *gorm.DB { return nil }

func (r *fakePaymentRepo) CreateTx(_ *gorm.DB, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	copied := *p
	r.payments = append(r.payments, &copied)
	return nil
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakePaymentRepo) FindByOrderIDTx(_ *gorm.DB, orderID uuid.UUID) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, p := range r.payments {
		if p.OrderID != nil && *p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) UpdateStatusTx(_ *gorm.DB, id uuid.UUID, from, to string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID == id && p.Status == from {
			p.Status = to
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakePaymentRepo) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, p := range r.payments {
		if p.CashSessionID == sessionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ListStuckPending(_ context.Context, cutoff time.Time, limit int) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, p := range r.payments {
		if p.Status == model.PaymentPending && p.CreatedAt.Before(cutoff) {
			out = append(out, *p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) SumBySession(ctx context.Context, sessionID uuid.UUID) (*repository.SessionSums, error) {
	payments, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sums := &repository.SessionSums{ByMethod: map[string]decimal.Decimal{
		model.PaymentMethodCash:   decimal.Zero,
		model.PaymentMethodCredit: decimal.Zero,
		model.PaymentMethodDebit:  decimal.Zero,
		model.PaymentMethodPix:    decimal.Zero,
		model.PaymentMethodCheck:  decimal.Zero,
	}}
	for i := range payments {
		p := payments[i]
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

// ── OrderRepository ──────────────────────────────────────────────────────────

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*model.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (r *fakeOrderRepo) DB() *gorm.DB { return nil }

func (r *fakeOrderRepo) Create(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	r.orders[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.Order, error) {
	return r.FindByID(context.Background(), id)
}

func (r *fakeOrderRepo) SetStockCommittedTx(_ *gorm.DB, id uuid.UUID, from, to bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.StockCommitted != from {
		return 0, nil
	}
	o.StockCommitted = to
	return 1, nil
}

func (r *fakeOrderRepo) UpdatePaymentStatusTx(_ *gorm.DB, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.PaymentStatus = status
	}
	return nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.Status = status
	}
	return nil
}

// ── ProductRepository ────────────────────────────────────────────────────────

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*model.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (r *fakeProductRepo) DB() *gorm.DB { return nil }

func (r *fakeProductRepo) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProductRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.Product, error) {
	return r.FindByID(context.Background(), id)
}

func (r *fakeProductRepo) DecrementStockTx(_ *gorm.DB, id uuid.UUID, qty int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.Stock < qty {
		return 0, nil
	}
	p.Stock -= qty
	return 1, nil
}

func (r *fakeProductRepo) IncrementStockTx(_ *gorm.DB, id uuid.UUID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		p.Stock += qty
	}
	return nil
}

// ── LegacyClientRepository ───────────────────────────────────────────────────

type fakeClientRepo struct {
	mu           sync.Mutex
	clients      map[uuid.UUID]*model.LegacyClient
	debtPayments []model.DebtPayment
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: make(map[uuid.UUID]*model.LegacyClient)}
}

func (r *fakeClientRepo) DB() *gorm.DB { return nil }

func (r *fakeClientRepo) Create(_ context.Context, c *model.LegacyClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.clients[c.ID] = c
	return nil
}

func (r *fakeClientRepo) FindByID(_ context.Context, id uuid.UUID) (*model.LegacyClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeClientRepo) DecrementDebtTx(_ *gorm.DB, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || c.Debt.LessThan(amount) {
		return 0, nil
	}
	c.Debt = c.Debt.Sub(amount)
	return 1, nil
}

func (r *fakeClientRepo) CreateDebtPaymentTx(_ *gorm.DB, dp *model.DebtPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dp.ID == uuid.Nil {
		dp.ID = uuid.New()
	}
	r.debtPayments = append(r.debtPayments, *dp)
	return nil
}

func (r *fakeClientRepo) ListDebtPayments(_ context.Context, clientID uuid.UUID) ([]model.DebtPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DebtPayment
	for _, dp := range r.debtPayments {
		if dp.LegacyClientID == clientID {
			out = append(out, dp)
		}
	}
	return out, nil
}

func (r *fakeClientRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string, requireZeroDebt bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return 0, nil
	}
	if requireZeroDebt && !c.Debt.IsZero() {
		return 0, nil
	}
	c.Status = status
	return 1, nil
}

// ── StockMovementRepository ──────────────────────────────────────────────────

type fakeStockMoveRepo struct {
	mu        sync.Mutex
	movements []model.StockMovement
}

func newFakeStockMoveRepo() *fakeStockMoveRepo { return &fakeStockMoveRepo{} }

func (r *fakeStockMoveRepo) CreateTx(_ *gorm.DB, m *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeStockMoveRepo) ListByProduct(_ context.Context, productID uuid.UUID, limit int) ([]model.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── Directory / dispatcher stubs ─────────────────────────────────────────────

type fakeDirectory struct {
	names map[uuid.UUID]string
	err   error
}

func (d *fakeDirectory) ResolveName(_ context.Context, operatorID uuid.UUID) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.names[operatorID], nil
}

type capturingDispatcher struct {
	mu       sync.Mutex
	payloads []interface{}
}

func (d *capturingDispatcher) EnqueueSessionSummary(_ context.Context, payload interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, payload)
	return nil
}
