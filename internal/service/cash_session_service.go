package service

import (
	"context"
	"errors"
	"time"

	"oticapos/internal/dto"
	"oticapos/internal/model"
	"oticapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OperatorDirectory resolves an operator id to a display name. Backed by the
// external employee directory — read-only, attribution only.
type OperatorDirectory interface {
	ResolveName(ctx context.Context, operatorID uuid.UUID) (string, error)
}

// SummaryDispatcher enqueues the closing-summary job. Satisfied by
// worker.Dispatcher; kept as an interface so unit tests can capture payloads.
type SummaryDispatcher interface {
	EnqueueSessionSummary(ctx context.Context, payload interface{}) error
}

// CashSessionService owns the open→closed lifecycle and the "one open session"
// invariant. Centralizing the check here keeps it out of every payment-writing
// code path; the partial unique index backs it up across processes.
type CashSessionService interface {
	Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	Close(ctx context.Context, operatorID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error)
	// GetCurrentOpen returns (nil, nil) when no session is open.
	GetCurrentOpen(ctx context.Context) (*dto.SessionResponse, error)
	History(ctx context.Context, page, limit int) (*dto.SessionListResponse, error)
}

type cashSessionService struct {
	repo       repository.CashSessionRepository
	directory  OperatorDirectory
	dispatcher SummaryDispatcher
}

func NewCashSessionService(repo repository.CashSessionRepository, directory OperatorDirectory, dispatcher SummaryDispatcher) CashSessionService {
	return &cashSessionService{repo: repo, directory: directory, dispatcher: dispatcher}
}

// ── Open ─────────────────────────────────────────────────────────────────────

func (s *cashSessionService) Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	if req.OpeningBalance.IsNegative() {
		return nil, errors.New("opening balance cannot be negative")
	}

	// Pre-check for a friendly error; the partial unique index on
	// status='open' is the real guard when two opens race.
	if existing, err := s.repo.FindOpen(ctx); err == nil && existing != nil {
		return nil, ErrSessionAlreadyOpen
	}

	session := &model.CashSession{
		Status:         model.SessionOpen,
		OpeningBalance: req.OpeningBalance,
		CurrentBalance: req.OpeningBalance,
		OpenedBy:       operatorID,
		OpenedByName:   s.resolveName(ctx, operatorID),
		Observations:   req.Observations,
		OpenedAt:       time.Now(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSessionAlreadyOpen
		}
		return nil, err
	}
	return sessionToResponse(session), nil
}

// ── Close ────────────────────────────────────────────────────────────────────

func (s *cashSessionService) Close(ctx context.Context, operatorID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error) {
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	closedByName := s.resolveName(ctx, operatorID)
	now := time.Now()
	closing := req.ClosingBalance
	closingData := model.CashSession{
		ClosingBalance: &closing,
		ClosedBy:       &operatorID,
		ClosedByName:   &closedByName,
		Observations:   req.Observations,
		ClosedAt:       &now,
	}

	// Guarded flip open→closed: zero rows means a concurrent close won, or
	// the session was never the open one.
	rows, err := s.repo.Close(ctx, sessionID, closingData)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if session.Status == model.SessionClosed {
			return nil, ErrSessionAlreadyClosed
		}
		// Re-read: the session may have been closed between our read and the
		// flip attempt.
		if fresh, err := s.repo.FindByID(ctx, sessionID); err == nil && fresh.Status == model.SessionClosed {
			return nil, ErrSessionAlreadyClosed
		}
		return nil, ErrSessionNotOpen
	}

	session.Status = model.SessionClosed
	session.ClosingBalance = &closing
	session.ClosedBy = &operatorID
	session.ClosedByName = &closedByName
	session.Observations = req.Observations
	session.ClosedAt = &now

	// Closing summary for the supervisor — best-effort, fire and forget.
	if s.dispatcher != nil {
		payload := map[string]interface{}{
			"session_id":      session.ID.String(),
			"opening_balance": session.OpeningBalance.String(),
			"current_balance": session.CurrentBalance.String(),
			"closing_balance": closing.String(),
			"closed_by":       closedByName,
			"closed_at":       now.Format(time.RFC3339),
		}
		if err := s.dispatcher.EnqueueSessionSummary(ctx, payload); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("failed to enqueue closing summary")
		}
	}

	return sessionToResponse(session), nil
}

// ── Lookups ──────────────────────────────────────────────────────────────────

func (s *cashSessionService) GetCurrentOpen(ctx context.Context) (*dto.SessionResponse, error) {
	session, err := s.repo.FindOpen(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sessionToResponse(session), nil
}

func (s *cashSessionService) History(ctx context.Context, page, limit int) (*dto.SessionListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	sessions, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	items := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, *sessionToResponse(&sessions[i]))
	}
	return &dto.SessionListResponse{Data: items, Total: total, Page: page, Limit: limit}, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// resolveName falls back to the raw id when the directory is unreachable —
// attribution must never block a session operation.
func (s *cashSessionService) resolveName(ctx context.Context, operatorID uuid.UUID) string {
	if s.directory == nil {
		return operatorID.String()
	}
	name, err := s.directory.ResolveName(ctx, operatorID)
	if err != nil || name == "" {
		log.Warn().Err(err).Str("operator_id", operatorID.String()).Msg("operator name lookup failed")
		return operatorID.String()
	}
	return name
}

func sessionToResponse(s *model.CashSession) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ID:             s.ID.String(),
		Status:         s.Status,
		OpeningBalance: s.OpeningBalance,
		CurrentBalance: s.CurrentBalance,
		ClosingBalance: s.ClosingBalance,
		Totals:         sessionTotals(s),
		OpenedBy:       s.OpenedBy.String(),
		OpenedByName:   s.OpenedByName,
		ClosedByName:   s.ClosedByName,
		Observations:   s.Observations,
		OpenedAt:       s.OpenedAt.Format(time.RFC3339),
	}
	if s.ClosedBy != nil {
		id := s.ClosedBy.String()
		resp.ClosedBy = &id
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}
