package ai

import (
	"context"
	"errors"
	"time"

	apperr "github.com/semidx/semidx/internal/pkg/errors"
)

const defaultMaxAttempts = 3

// retryRateLimited runs fn up to maxAttempts times, sleeping for the
// provider's retry-after hint between attempts. Only rate-limit errors are
// retried; auth and other failures surface immediately. An exhausted budget
// is wrapped as a ProviderError so callers never loop on a sustained 429.
func retryRateLimited[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var zero T
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		var rle *apperr.RateLimitError
		if !errors.As(err, &rle) {
			return zero, err
		}
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(rle.RetryAfter):
		}
	}
	return zero, &apperr.ProviderError{Op: "embed", Err: lastErr}
}
