package resource

import (
	"context"
	"errors"
	"time"

	"github.com/careset/fhirstore/internal/txn"
)

// RetryConfig configures caller-side retry. The transaction executor
// itself never retries; whether a serialization conflict is worth
// another attempt is a decision for the code that owns the unit of
// work, so the helper lives here rather than in txn.
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the retry policy used when a caller has no
// stronger opinion.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseBackoff: 100 * time.Millisecond}
}

// WithRetry runs fn, retrying with exponential backoff while the error
// is a retryable conflict (SerializationConflict or TransactionAborted).
// Any other error, or exhausting MaxRetries, returns immediately.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}

		lastErr = err
		backoff := cfg.BaseBackoff * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return zero, lastErr
}

// IsRetryable reports whether err (as surfaced by the repository layer)
// is worth retrying: a serialization conflict or an aborted-session
// error.
func IsRetryable(err error) bool {
	return errors.Is(err, txn.ErrSerializationConflict) || errors.Is(err, txn.ErrTransactionAborted)
}
