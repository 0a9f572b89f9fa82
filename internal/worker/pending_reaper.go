package worker

// pending_reaper.go
// Background goroutine that periodically sweeps payments stuck in
// status='pending' — gateway webhooks that never arrived — and polls the
// gateway for their real outcome. Uses the Circuit Breaker to avoid hammering
// a downed gateway.

import (
	"context"
	"time"

	"oticapos/internal/infra"
	"oticapos/internal/repository"
	"oticapos/internal/service"

	"github.com/rs/zerolog/log"
)

const (
	reaperTickInterval = 30 * time.Second
	reaperBatchSize    = 10
	reaperStuckAfter   = 5 * time.Minute
)

// PendingReaperConfig holds all dependencies for the reaper goroutine.
type PendingReaperConfig struct {
	PaymentRepo repository.PaymentRepository
	Payments    service.PaymentService
	Gateway     *infra.GatewayClient
	CB          *infra.CircuitBreaker
}

// StartPendingReaper launches a background goroutine that ticks every 30s,
// queries stuck pending payments, and polls the gateway through the CB.
// It respects the context for graceful shutdown.
func StartPendingReaper(ctx context.Context, cfg PendingReaperConfig) {
	go func() {
		ticker := time.NewTicker(reaperTickInterval)
		defer ticker.Stop()

		log.Info().Msg("pending_reaper: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("pending_reaper: shutting down")
				return
			case <-ticker.C:
				sweepPending(ctx, cfg)
			}
		}
	}()
}

func sweepPending(ctx context.Context, cfg PendingReaperConfig) {
	// If CB is open, skip entirely — don't hammer a downed gateway
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("pending_reaper: circuit breaker is open, skipping tick")
		return
	}

	cutoff := time.Now().Add(-reaperStuckAfter)
	stuck, err := cfg.PaymentRepo.ListStuckPending(ctx, cutoff, reaperBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("pending_reaper: failed to query stuck payments")
		return
	}

	if len(stuck) == 0 {
		return
	}

	log.Info().Int("count", len(stuck)).Msg("pending_reaper: processing stuck pending payments")

	for i := range stuck {
		payment := &stuck[i]

		// Check CB state before each call — it may have tripped mid-batch
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("pending_reaper: circuit breaker opened mid-batch, stopping")
			return
		}

		var status *infra.GatewayStatus
		cbErr := cfg.CB.Execute(func() error {
			resp, err := cfg.Gateway.CheckStatus(ctx, payment.ID.String())
			if err != nil {
				return err
			}
			status = resp
			return nil
		})
		if cbErr != nil {
			log.Warn().Err(cbErr).Str("payment_id", payment.ID.String()).
				Msg("pending_reaper: gateway poll failed, will retry next tick")
			continue
		}

		switch status.Status {
		case infra.GatewayApproved:
			if _, err := cfg.Payments.Confirm(ctx, payment.ID, true); err != nil {
				logReapOutcome(payment.ID.String(), "confirm", err)
			} else {
				log.Info().Str("payment_id", payment.ID.String()).
					Msg("pending_reaper: stuck payment confirmed from gateway poll")
			}
		case infra.GatewayDeclined:
			if _, err := cfg.Payments.Confirm(ctx, payment.ID, false); err != nil {
				logReapOutcome(payment.ID.String(), "decline", err)
			} else {
				log.Info().Str("payment_id", payment.ID.String()).
					Msg("pending_reaper: stuck payment cancelled from gateway poll")
			}
		default:
			// Still pending at the gateway — leave it for the next sweep.
			log.Debug().Str("payment_id", payment.ID.String()).
				Msg("pending_reaper: payment still pending at gateway")
		}
	}
}

func logReapOutcome(paymentID, action string, err error) {
	if isTerminalConfirmError(err) {
		// Resolved by someone else between the query and the flip — fine.
		log.Debug().Str("payment_id", paymentID).Str("action", action).Err(err).
			Msg("pending_reaper: payment already resolved")
		return
	}
	log.Error().Str("payment_id", paymentID).Str("action", action).Err(err).
		Msg("pending_reaper: failed to apply gateway outcome")
}
