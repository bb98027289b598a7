package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalid    = errors.New("invalid")
	ErrExtraction = errors.New("extraction failed")
	ErrRateLimit  = errors.New("rate limited")
	ErrAuth       = errors.New("authentication failed")
	ErrConfig     = errors.New("provider not configured")
	ErrInternal   = errors.New("internal")
)

// RateLimitError carries the provider's retry-after hint so callers can wait
// the requested amount before resubmitting the same batch.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimit
}

// ProviderError is a rate-limit or transport failure that survived the retry
// budget and is surfaced to the caller.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failed store transaction. The whole upsert/delete has
// been rolled back by the time the caller sees this.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrConfig)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
