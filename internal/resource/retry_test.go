package resource_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careset/fhirstore/internal/resource"
	"github.com/careset/fhirstore/internal/txn"
)

func TestWithRetry_SucceedsAfterTransientConflicts(t *testing.T) {
	cfg := resource.RetryConfig{MaxRetries: 5, BaseBackoff: time.Millisecond}
	attempts := 0

	got, err := resource.WithRetry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, txn.ErrSerializationConflict
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_NonRetryableErrorStopsImmediately(t *testing.T) {
	cfg := resource.RetryConfig{MaxRetries: 5, BaseBackoff: time.Millisecond}
	attempts := 0
	wantErr := errors.New("validation failed")

	_, err := resource.WithRetry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	cfg := resource.RetryConfig{MaxRetries: 2, BaseBackoff: time.Millisecond}
	attempts := 0

	_, err := resource.WithRetry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, txn.ErrTransactionAborted
	})

	assert.ErrorIs(t, err, txn.ErrTransactionAborted)
	assert.Equal(t, 2, attempts)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, resource.IsRetryable(txn.ErrSerializationConflict))
	assert.True(t, resource.IsRetryable(txn.ErrTransactionAborted))
	assert.False(t, resource.IsRetryable(errors.New("other")))
}
