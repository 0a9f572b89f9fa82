package worker

// summary_worker.go
// Processes closing-summary jobs from QueueSessionSummary: mails the store
// owner a plain-text recap of the session that just closed.

import (
	"context"
	"encoding/json"
	"fmt"

	"oticapos/internal/infra"

	"github.com/rs/zerolog/log"
)

// SummaryJobPayload is the job envelope sent to QueueSessionSummary.
type SummaryJobPayload struct {
	SessionID      string `json:"session_id"`
	OpeningBalance string `json:"opening_balance"`
	CurrentBalance string `json:"current_balance"`
	ClosingBalance string `json:"closing_balance"`
	ClosedBy       string `json:"closed_by"`
	ClosedAt       string `json:"closed_at"`
}

// SummaryWorker mails session closing summaries.
type SummaryWorker struct {
	mailer    *infra.Mailer
	recipient string
}

func NewSummaryWorker(mailer *infra.Mailer, recipient string) *SummaryWorker {
	return &SummaryWorker{mailer: mailer, recipient: recipient}
}

// Process formats and sends one closing summary. Delivery is best-effort: a
// failed email never blocks or retries — the session row is the source of
// truth and the recap can be re-read from it.
func (w *SummaryWorker) Process(_ context.Context, raw json.RawMessage) {
	var payload SummaryJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("summary_worker: invalid payload")
		return
	}
	if w.recipient == "" {
		log.Warn().Msg("summary_worker: no recipient configured — skipping")
		return
	}

	subject := fmt.Sprintf("Cash session closed — %s", payload.ClosedAt)
	body := fmt.Sprintf(
		"Cash session %s was closed by %s at %s.\n\nOpening balance: %s\nExpected balance: %s\nCounted balance: %s\n",
		payload.SessionID, payload.ClosedBy, payload.ClosedAt,
		payload.OpeningBalance, payload.CurrentBalance, payload.ClosingBalance,
	)

	if err := w.mailer.Send(w.recipient, subject, body); err != nil {
		log.Error().Err(err).Str("to", w.recipient).Msg("summary_worker: failed to send email")
		return
	}
	log.Info().Str("session_id", payload.SessionID).Str("to", w.recipient).
		Msg("summary_worker: closing summary sent")
}
