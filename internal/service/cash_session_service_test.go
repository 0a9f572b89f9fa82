package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"oticapos/internal/dto"
	"oticapos/internal/model"
	"oticapos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionService(repo *fakeSessionRepo) (service.CashSessionService, *capturingDispatcher) {
	dispatcher := &capturingDispatcher{}
	svc := service.NewCashSessionService(repo, &fakeDirectory{names: map[uuid.UUID]string{}}, dispatcher)
	return svc, dispatcher
}

func openSession(t *testing.T, svc service.CashSessionService, opening string) *dto.SessionResponse {
	t.Helper()
	resp, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{
		OpeningBalance: decimal.RequireFromString(opening),
	})
	require.NoError(t, err)
	return resp
}

func TestOpenSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, _ := newSessionService(repo)

	resp := openSession(t, svc, "100.00")

	assert.Equal(t, model.SessionOpen, resp.Status)
	assert.True(t, resp.CurrentBalance.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, resp.OpeningBalance.Equal(resp.CurrentBalance))
}

func TestOpenSessionRejectsSecondOpen(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, _ := newSessionService(repo)

	openSession(t, svc, "50.00")

	_, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{
		OpeningBalance: decimal.RequireFromString("10.00"),
	})
	assert.ErrorIs(t, err, service.ErrSessionAlreadyOpen)
}

func TestOpenSessionConcurrentOnlyOneWins(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, _ := newSessionService(repo)

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{
				OpeningBalance: decimal.RequireFromString("100.00"),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, service.ErrSessionAlreadyOpen)
			}
		}()
	}
	wg.Wait()

	// The fake emulates the partial unique index on status='open', so every
	// racer past the pre-check still collides on insert. Exactly one wins.
	assert.Equal(t, 1, succeeded)
	openCount := 0
	for _, s := range repo.sessions {
		if s.Status == model.SessionOpen {
			openCount++
		}
	}
	assert.Equal(t, 1, openCount)
}

func TestCloseSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, dispatcher := newSessionService(repo)

	opened := openSession(t, svc, "100.00")
	closer := uuid.New()

	resp, err := svc.Close(context.Background(), closer, dto.CloseSessionRequest{
		SessionID:      opened.ID,
		ClosingBalance: decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.SessionClosed, resp.Status)
	require.NotNil(t, resp.ClosingBalance)
	assert.True(t, resp.ClosingBalance.Equal(decimal.RequireFromString("100.00")))
	require.NotNil(t, resp.ClosedBy)
	assert.Equal(t, closer.String(), *resp.ClosedBy)
	assert.NotNil(t, resp.ClosedAt)

	// A closing summary job was enqueued.
	assert.Len(t, dispatcher.payloads, 1)
}

func TestCloseSessionTwiceFails(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, _ := newSessionService(repo)

	opened := openSession(t, svc, "100.00")
	req := dto.CloseSessionRequest{
		SessionID:      opened.ID,
		ClosingBalance: decimal.RequireFromString("100.00"),
	}

	_, err := svc.Close(context.Background(), uuid.New(), req)
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), uuid.New(), req)
	assert.ErrorIs(t, err, service.ErrSessionAlreadyClosed)
}

func TestCloseUnknownSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, _ := newSessionService(repo)

	_, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{
		SessionID:      uuid.NewString(),
		ClosingBalance: decimal.Zero,
	})
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestCloseFreezesBalance(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, _ := newSessionService(repo)

	opened := openSession(t, svc, "100.00")
	sessionID := uuid.MustParse(opened.ID)

	_, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{
		SessionID:      opened.ID,
		ClosingBalance: decimal.RequireFromString("95.00"),
	})
	require.NoError(t, err)

	// The guarded increment refuses to touch a closed session.
	rows, err := repo.ApplyPaymentTx(nil, sessionID, model.PaymentMethodCash, decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	assert.Zero(t, rows)

	stored, err := repo.FindByID(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentBalance.Equal(decimal.RequireFromString("100.00")))
}

func TestGetCurrentOpen(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, _ := newSessionService(repo)

	resp, err := svc.GetCurrentOpen(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resp)

	opened := openSession(t, svc, "40.00")

	resp, err = svc.GetCurrentOpen(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, opened.ID, resp.ID)
}

func TestOperatorNameFallsBackToID(t *testing.T) {
	repo := newFakeSessionRepo()
	operatorID := uuid.New()
	svc := service.NewCashSessionService(repo, &fakeDirectory{err: errors.New("directory down")}, &capturingDispatcher{})

	resp, err := svc.Open(context.Background(), operatorID, dto.OpenSessionRequest{
		OpeningBalance: decimal.Zero,
	})
	require.NoError(t, err)
	assert.Equal(t, operatorID.String(), resp.OpenedByName)
}

func TestHistoryPaginates(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, _ := newSessionService(repo)

	now := time.Now()
	for i := 0; i < 5; i++ {
		closed := now
		closing := decimal.Zero
		op := uuid.New()
		name := "op"
		require.NoError(t, repo.Create(context.Background(), &model.CashSession{
			Status:         model.SessionClosed,
			OpeningBalance: decimal.Zero,
			CurrentBalance: decimal.Zero,
			ClosingBalance: &closing,
			OpenedBy:       op,
			OpenedByName:   name,
			OpenedAt:       now,
			ClosedAt:       &closed,
		}))
	}

	resp, err := svc.History(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Total)
	assert.Len(t, resp.Data, 3)

	resp, err = svc.History(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.Len(t, resp.Data, 2)
}
