package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperr "github.com/semidx/semidx/internal/pkg/errors"
)

func TestRetryRateLimited_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	out, err := retryRateLimited(context.Background(), 3, func() (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, out)
	require.Equal(t, 1, calls)
}

func TestRetryRateLimited_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	out, err := retryRateLimited(context.Background(), 3, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &apperr.RateLimitError{RetryAfter: time.Millisecond}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 3, calls)
}

func TestRetryRateLimited_ExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := retryRateLimited(context.Background(), 2, func() (int, error) {
		calls++
		return 0, &apperr.RateLimitError{RetryAfter: time.Millisecond}
	})
	require.Error(t, err)
	require.Equal(t, 2, calls)
	var pe *apperr.ProviderError
	require.True(t, errors.As(err, &pe))
}

func TestRetryRateLimited_NonRateLimitNotRetried(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := retryRateLimited(context.Background(), 5, func() (int, error) {
		calls++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestRetryRateLimited_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := retryRateLimited(ctx, 3, func() (int, error) {
		return 0, &apperr.RateLimitError{RetryAfter: time.Minute}
	})
	require.ErrorIs(t, err, context.Canceled)
}
