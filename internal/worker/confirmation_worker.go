package worker

// confirmation_worker.go
// Processes gateway confirmation jobs from QueueGatewayConfirmation: maps the
// webhook result onto the payment ledger (pending → completed / cancelled).

import (
	"context"
	"encoding/json"
	"errors"

	"oticapos/internal/dto"
	"oticapos/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const maxConfirmationAttempts = 3

// PaymentConfirmer is the slice of the payment ledger the worker needs.
// Satisfied by service.PaymentService.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, paymentID uuid.UUID, approved bool) (*dto.PaymentResponse, error)
}

// ConfirmationJobPayload is the job envelope sent to QueueGatewayConfirmation.
type ConfirmationJobPayload struct {
	PaymentID string `json:"payment_id"`
	Result    string `json:"result"` // "approved" | "declined"
	Attempts  int    `json:"attempts"`
}

type ConfirmationWorker struct {
	confirmer  PaymentConfirmer
	dispatcher *Dispatcher
}

func NewConfirmationWorker(confirmer PaymentConfirmer, dispatcher *Dispatcher) *ConfirmationWorker {
	return &ConfirmationWorker{confirmer: confirmer, dispatcher: dispatcher}
}

// Process applies one confirmation. A payment that already left the pending
// state (operator cancelled it, or a duplicate webhook) is dropped silently —
// the ledger's guarded status flip makes reprocessing harmless. Transient
// failures are re-enqueued up to maxConfirmationAttempts, then dead-lettered.
func (w *ConfirmationWorker) Process(ctx context.Context, rdb *redis.Client, raw json.RawMessage) {
	var payload ConfirmationJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("confirmation_worker: invalid payload")
		return
	}
	paymentID, err := uuid.Parse(payload.PaymentID)
	if err != nil {
		log.Error().Str("payment_id", payload.PaymentID).Msg("confirmation_worker: invalid payment id")
		return
	}

	_, err = w.confirmer.Confirm(ctx, paymentID, payload.Result == "approved")
	if err == nil {
		log.Info().Str("payment_id", payload.PaymentID).Str("result", payload.Result).
			Msg("confirmation_worker: gateway confirmation applied")
		return
	}

	if isTerminalConfirmError(err) {
		log.Warn().Str("payment_id", payload.PaymentID).Err(err).
			Msg("confirmation_worker: confirmation no longer applicable, dropping")
		return
	}

	payload.Attempts++
	if payload.Attempts >= maxConfirmationAttempts {
		SendToDLQ(ctx, rdb, QueueGatewayConfirmation, "gateway_confirmation", raw, err.Error(), payload.Attempts)
		return
	}
	if err := w.dispatcher.EnqueueGatewayConfirmation(ctx, payload); err != nil {
		log.Error().Err(err).Str("payment_id", payload.PaymentID).
			Msg("confirmation_worker: re-enqueue failed")
	}
}

// isTerminalConfirmError reports errors that retrying cannot fix. Overpayment
// is terminal too: outstanding debt only shrinks, so retrying would just
// cycle the job through the queue while the payment stays pending.
func isTerminalConfirmError(err error) bool {
	return errors.Is(err, service.ErrPaymentNotPending) ||
		errors.Is(err, service.ErrPaymentNotFound) ||
		errors.Is(err, service.ErrSessionAlreadyClosed) ||
		errors.Is(err, service.ErrOverpayment)
}
