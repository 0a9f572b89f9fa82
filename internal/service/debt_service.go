package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"oticapos/internal/dto"
	"oticapos/internal/model"
	"oticapos/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// debtCacheTTL bounds how stale a cached balance read may be. Writes
// invalidate the key, so the TTL only matters for out-of-band mutations.
const debtCacheTTL = 30 * time.Second

// DebtService owns the legacy-client debt ledger. ApplyPaymentTx is invoked
// only by the payment ledger, never by handlers.
type DebtService interface {
	GetBalance(ctx context.Context, clientID uuid.UUID) (*dto.DebtBalanceResponse, error)
	PaymentHistory(ctx context.Context, clientID uuid.UUID) (*dto.DebtHistoryResponse, error)
	ToggleStatus(ctx context.Context, clientID uuid.UUID) (*dto.DebtBalanceResponse, error)
	// ApplyPaymentTx decrements the client's debt and appends the history row
	// inside the caller's transaction. Fails with ErrOverpayment when the
	// amount exceeds the outstanding debt — never silently clamped.
	ApplyPaymentTx(tx *gorm.DB, clientID uuid.UUID, payment *model.Payment) error
	// InvalidateBalance drops the cached balance. The payment ledger calls it
	// after its transaction commits — invalidating inside the transaction
	// would let a concurrent read re-cache the pre-payment debt.
	InvalidateBalance(ctx context.Context, clientID uuid.UUID)
}

type debtService struct {
	repo repository.LegacyClientRepository
	rdb  *redis.Client
}

func NewDebtService(repo repository.LegacyClientRepository, rdb *redis.Client) DebtService {
	return &debtService{repo: repo, rdb: rdb}
}

func debtCacheKey(clientID uuid.UUID) string { return "debt:" + clientID.String() }

func (s *debtService) GetBalance(ctx context.Context, clientID uuid.UUID) (*dto.DebtBalanceResponse, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, debtCacheKey(clientID)).Result(); err == nil {
			var resp dto.DebtBalanceResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	resp := &dto.DebtBalanceResponse{
		LegacyClientID: client.ID.String(),
		Debt:           client.Debt,
		TotalDebt:      client.TotalDebt,
		Status:         client.Status,
	}

	if s.rdb != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.rdb.Set(ctx, debtCacheKey(clientID), data, debtCacheTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("debt balance cache write failed")
			}
		}
	}
	return resp, nil
}

func (s *debtService) PaymentHistory(ctx context.Context, clientID uuid.UUID) (*dto.DebtHistoryResponse, error) {
	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	history, err := s.repo.ListDebtPayments(ctx, clientID)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.DebtPaymentEntry, 0, len(history))
	for _, dp := range history {
		entries = append(entries, dto.DebtPaymentEntry{
			PaymentID: dp.PaymentID.String(),
			Amount:    dp.Amount,
			PaidAt:    dp.PaidAt.Format(time.RFC3339),
		})
	}
	return &dto.DebtHistoryResponse{
		LegacyClientID: client.ID.String(),
		Debt:           client.Debt,
		TotalDebt:      client.TotalDebt,
		History:        entries,
	}, nil
}

// ToggleStatus flips active↔inactive. Deactivation requires zero debt; the
// debt guard runs in the same UPDATE as the flip so a concurrent debt change
// cannot slip in between check and write.
func (s *debtService) ToggleStatus(ctx context.Context, clientID uuid.UUID) (*dto.DebtBalanceResponse, error) {
	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	if client.Status == model.LegacyClientActive {
		rows, err := s.repo.UpdateStatus(ctx, clientID, model.LegacyClientInactive, true)
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			return nil, ErrOutstandingDebt
		}
		client.Status = model.LegacyClientInactive
	} else {
		if _, err := s.repo.UpdateStatus(ctx, clientID, model.LegacyClientActive, false); err != nil {
			return nil, err
		}
		client.Status = model.LegacyClientActive
	}

	s.invalidate(ctx, clientID)
	return &dto.DebtBalanceResponse{
		LegacyClientID: client.ID.String(),
		Debt:           client.Debt,
		TotalDebt:      client.TotalDebt,
		Status:         client.Status,
	}, nil
}

func (s *debtService) ApplyPaymentTx(tx *gorm.DB, clientID uuid.UUID, payment *model.Payment) error {
	rows, err := s.repo.DecrementDebtTx(tx, clientID, payment.Amount)
	if err != nil {
		return err
	}
	if rows == 0 {
		// Either the client vanished or debt < amount: the pre-flight check in
		// the payment ledger already filtered unknown clients, so this is an
		// overpayment that raced past the pre-flight read.
		return ErrOverpayment
	}
	if err := s.repo.CreateDebtPaymentTx(tx, &model.DebtPayment{
		LegacyClientID: clientID,
		PaymentID:      payment.ID,
		Amount:         payment.Amount,
		PaidAt:         time.Now(),
	}); err != nil {
		return err
	}
	return nil
}

func (s *debtService) InvalidateBalance(ctx context.Context, clientID uuid.UUID) {
	s.invalidate(ctx, clientID)
}

func (s *debtService) invalidate(ctx context.Context, clientID uuid.UUID) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, debtCacheKey(clientID)).Err(); err != nil {
		log.Warn().Err(err).Msg("debt balance cache invalidation failed")
	}
}
