package service_test

import (
	"context"
	"sync"
	"testing"

	"oticapos/internal/dto"
	"oticapos/internal/model"
	"oticapos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settlementEnv struct {
	svc         service.SettlementService
	orderRepo   *fakeOrderRepo
	productRepo *fakeProductRepo
	stockMoves  *fakeStockMoveRepo
	sessionRepo *fakeSessionRepo
	paymentRepo *fakePaymentRepo
	sessionID   uuid.UUID
}

func newSettlementEnv(t *testing.T) *settlementEnv {
	t.Helper()
	env := &settlementEnv{
		orderRepo:   newFakeOrderRepo(),
		productRepo: newFakeProductRepo(),
		stockMoves:  newFakeStockMoveRepo(),
		sessionRepo: newFakeSessionRepo(),
		paymentRepo: newFakePaymentRepo(),
	}

	session := &model.CashSession{
		Status:         model.SessionOpen,
		OpeningBalance: decimal.Zero,
		CurrentBalance: decimal.Zero,
		OpenedBy:       uuid.New(),
		OpenedByName:   "op",
	}
	require.NoError(t, env.sessionRepo.Create(context.Background(), session))
	env.sessionID = session.ID

	debt := service.NewDebtService(newFakeClientRepo(), nil)
	payments := service.NewPaymentService(env.paymentRepo, env.sessionRepo, env.orderRepo, debt, nil, 0)
	env.svc = service.NewSettlementService(env.orderRepo, env.productRepo, env.stockMoves,
		env.sessionRepo, payments, 0)
	return env
}

func (e *settlementEnv) addProduct(t *testing.T, productType string, stock int) uuid.UUID {
	t.Helper()
	p := &model.Product{
		Name:        "item",
		ProductType: productType,
		SellPrice:   decimal.RequireFromString("100.00"),
		Stock:       stock,
		Active:      true,
	}
	require.NoError(t, e.productRepo.Create(context.Background(), p))
	return p.ID
}

// addOrder attaches snapshot copies of the products to the items, the way a
// preloaded read does.
func (e *settlementEnv) addOrder(t *testing.T, lines map[uuid.UUID]int) uuid.UUID {
	t.Helper()
	order := &model.Order{
		TotalPrice: decimal.RequireFromString("100.00"),
		FinalPrice: decimal.RequireFromString("100.00"),
		Status:     model.OrderPending,
	}
	for productID, qty := range lines {
		product, err := e.productRepo.FindByID(context.Background(), productID)
		require.NoError(t, err)
		order.Items = append(order.Items, model.OrderItem{
			ProductID: productID,
			Quantity:  qty,
			UnitPrice: product.SellPrice,
			Product:   product,
		})
	}
	require.NoError(t, e.orderRepo.Create(context.Background(), order))
	return order.ID
}

func (e *settlementEnv) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	p, err := e.productRepo.FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func TestSettleDecrementsOnlyStockBearingLines(t *testing.T) {
	env := newSettlementEnv(t)
	frame := env.addProduct(t, model.ProductPrescriptionFrame, 5)
	lenses := env.addProduct(t, model.ProductLenses, 0)
	orderID := env.addOrder(t, map[uuid.UUID]int{frame: 2, lenses: 1})

	result, err := env.svc.Settle(context.Background(), uuid.New(), orderID, nil)
	require.NoError(t, err)
	assert.False(t, result.AlreadySettled)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, frame.String(), result.Lines[0].ProductID)
	assert.Equal(t, 3, result.Lines[0].StockAfter)

	assert.Equal(t, 3, env.stock(t, frame))
	assert.Equal(t, 0, env.stock(t, lenses))

	moves, err := env.stockMoves.ListByProduct(context.Background(), frame, 10)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, model.StockMoveSettlement, moves[0].Type)
	assert.Equal(t, -2, moves[0].Quantity)
	assert.Equal(t, 5, moves[0].StockBefore)
	assert.Equal(t, 3, moves[0].StockAfter)
}

func TestSettleIsIdempotent(t *testing.T) {
	env := newSettlementEnv(t)
	frame := env.addProduct(t, model.ProductSunglassesFrame, 4)
	orderID := env.addOrder(t, map[uuid.UUID]int{frame: 1})

	first, err := env.svc.Settle(context.Background(), uuid.New(), orderID, nil)
	require.NoError(t, err)
	assert.False(t, first.AlreadySettled)

	second, err := env.svc.Settle(context.Background(), uuid.New(), orderID, nil)
	require.NoError(t, err)
	assert.True(t, second.AlreadySettled)
	assert.Empty(t, second.Lines)

	assert.Equal(t, 3, env.stock(t, frame), "stock must be decremented exactly once")
}

func TestSettleInsufficientStock(t *testing.T) {
	env := newSettlementEnv(t)
	frame := env.addProduct(t, model.ProductPrescriptionFrame, 1)
	orderID := env.addOrder(t, map[uuid.UUID]int{frame: 2})

	_, err := env.svc.Settle(context.Background(), uuid.New(), orderID, nil)
	assert.ErrorIs(t, err, service.ErrInsufficientStock)

	var stockErr *service.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, frame, stockErr.ProductID)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	// Nothing moved.
	assert.Equal(t, 1, env.stock(t, frame))
	order, err := env.orderRepo.FindByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.False(t, order.StockCommitted)
}

func TestSettleCancelledOrder(t *testing.T) {
	env := newSettlementEnv(t)
	frame := env.addProduct(t, model.ProductPrescriptionFrame, 5)
	orderID := env.addOrder(t, map[uuid.UUID]int{frame: 1})
	require.NoError(t, env.orderRepo.UpdateStatus(context.Background(), orderID, model.OrderCancelled))

	_, err := env.svc.Settle(context.Background(), uuid.New(), orderID, nil)
	assert.ErrorIs(t, err, service.ErrOrderCancelled)
}

func TestSettleUnknownOrder(t *testing.T) {
	env := newSettlementEnv(t)
	_, err := env.svc.Settle(context.Background(), uuid.New(), uuid.New(), nil)
	assert.ErrorIs(t, err, service.ErrOrderNotFound)
}

func TestSettleWithCharge(t *testing.T) {
	env := newSettlementEnv(t)
	frame := env.addProduct(t, model.ProductPrescriptionFrame, 5)
	orderID := env.addOrder(t, map[uuid.UUID]int{frame: 1})

	result, err := env.svc.Settle(context.Background(), uuid.New(), orderID, &dto.ChargeRequest{
		Method: model.PaymentMethodCash,
		Amount: decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	assert.Equal(t, model.PaymentCompleted, result.Payment.Status)

	session, err := env.sessionRepo.FindByID(context.Background(), env.sessionID)
	require.NoError(t, err)
	assert.True(t, session.CurrentBalance.Equal(decimal.RequireFromString("100.00")))

	order, err := env.orderRepo.FindByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaymentPaid, order.PaymentStatus)
}

func TestSettleWithChargeRequiresOpenSession(t *testing.T) {
	env := newSettlementEnv(t)
	frame := env.addProduct(t, model.ProductPrescriptionFrame, 5)
	orderID := env.addOrder(t, map[uuid.UUID]int{frame: 1})
	_, err := env.sessionRepo.Close(context.Background(), env.sessionID, model.CashSession{})
	require.NoError(t, err)

	_, err = env.svc.Settle(context.Background(), uuid.New(), orderID, &dto.ChargeRequest{
		Method: model.PaymentMethodCash,
		Amount: decimal.RequireFromString("100.00"),
	})
	assert.ErrorIs(t, err, service.ErrNoOpenSession)
	assert.Equal(t, 5, env.stock(t, frame))
}

func TestReverseRestoresStock(t *testing.T) {
	env := newSettlementEnv(t)
	frame := env.addProduct(t, model.ProductPrescriptionFrame, 5)
	orderID := env.addOrder(t, map[uuid.UUID]int{frame: 2})

	_, err := env.svc.Settle(context.Background(), uuid.New(), orderID, nil)
	require.NoError(t, err)
	require.Equal(t, 3, env.stock(t, frame))

	require.NoError(t, env.svc.Reverse(context.Background(), orderID))
	assert.Equal(t, 5, env.stock(t, frame))

	moves, err := env.stockMoves.ListByProduct(context.Background(), frame, 10)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, model.StockMoveReversal, moves[1].Type)
	assert.Equal(t, 2, moves[1].Quantity)

	// Reversing again is a no-op, not a second restore.
	require.NoError(t, env.svc.Reverse(context.Background(), orderID))
	assert.Equal(t, 5, env.stock(t, frame))
}

func TestReverseNeverSettledOrder(t *testing.T) {
	env := newSettlementEnv(t)
	frame := env.addProduct(t, model.ProductPrescriptionFrame, 5)
	orderID := env.addOrder(t, map[uuid.UUID]int{frame: 1})

	require.NoError(t, env.svc.Reverse(context.Background(), orderID))
	assert.Equal(t, 5, env.stock(t, frame))
}

func TestConcurrentSettlementsDecrementOnce(t *testing.T) {
	env := newSettlementEnv(t)
	frame := env.addProduct(t, model.ProductPrescriptionFrame, 10)
	orderID := env.addOrder(t, map[uuid.UUID]int{frame: 3})

	const racers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.svc.Settle(context.Background(), uuid.New(), orderID, nil)
			assert.NoError(t, err)
			if err == nil && !result.AlreadySettled {
				mu.Lock()
				settled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, settled, "exactly one racer performs the decrement")
	assert.Equal(t, 7, env.stock(t, frame))
}
