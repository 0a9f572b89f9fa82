package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueGatewayConfirmation = "jobs:gateway_confirmation"
	QueueSessionSummary      = "jobs:session_summary"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueGatewayConfirmation pushes a gateway webhook for asynchronous
// processing, so the gateway gets its HTTP 200 before the ledger work runs.
func (d *Dispatcher) EnqueueGatewayConfirmation(ctx context.Context, payload interface{}) error {
	return d.enqueue(ctx, QueueGatewayConfirmation, "gateway_confirmation", payload)
}

// EnqueueSessionSummary pushes a closing-summary email job.
func (d *Dispatcher) EnqueueSessionSummary(ctx context.Context, payload interface{}) error {
	return d.enqueue(ctx, QueueSessionSummary, "session_summary", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Handlers holds the per-queue processors, wired at the composition root so
// the pool has access to all infrastructure dependencies.
type Handlers struct {
	Confirmation *ConfirmationWorker
	Summary      *SummaryWorker
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *Handlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers *Handlers, id int) {
	queues := []string{QueueGatewayConfirmation, QueueSessionSummary}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers *Handlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}

	switch queue {
	case QueueGatewayConfirmation:
		if handlers.Confirmation != nil {
			handlers.Confirmation.Process(ctx, rdb, job.Payload)
		}
	case QueueSessionSummary:
		if handlers.Summary != nil {
			handlers.Summary.Process(ctx, job.Payload)
		}
	default:
		log.Warn().Str("queue", queue).Str("type", job.Type).Msg("job from unknown queue dropped")
	}
}
