package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxConflictRetries = 3

// runTx executes fn inside a GORM transaction when db is available, or calls
// fn(nil) directly when db is nil (unit test mode with in-memory fakes).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// withRetry re-runs op from the start on detected write conflicts
// (serialization failure / deadlock), up to maxConflictRetries attempts, then
// surfaces ErrConcurrencyConflict. Business errors pass straight through.
// The op must be safe to re-run: every caller builds it around conditional
// updates and idempotency flags, so a retried attempt never double-applies.
func withRetry(ctx context.Context, name string, op func() error) error {
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = op()
		if err == nil || !isWriteConflict(err) {
			return mapDeadline(ctx, err)
		}
		log.Warn().Str("op", name).Int("attempt", attempt).Err(err).Msg("write conflict, retrying")

		select {
		case <-ctx.Done():
			return mapDeadline(ctx, ctx.Err())
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
	return ErrConcurrencyConflict
}

// isWriteConflict reports whether err is a storage-level conflict worth
// retrying: PostgreSQL serialization_failure (40001) or deadlock_detected
// (40P01).
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// isUniqueViolation reports a unique-constraint violation (SQLSTATE 23505) —
// how a concurrent open collides with the partial unique index on open status.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// mapDeadline converts a context deadline hit into the domain timeout error.
// By the all-or-nothing transaction guarantee an aborted operation left no
// partial effect, so the caller may retry.
func mapDeadline(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrOperationTimeout
	}
	return err
}
