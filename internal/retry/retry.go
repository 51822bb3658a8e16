// Package retry implements bounded exponential backoff for storage
// back-end operations. metastore's descriptor reads and writes go through
// Do so that transient storage errors are retried and permanent ones fail
// fast; the load worker's item-file reads call the backend directly and
// are not retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config controls backoff behavior.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultConfig is a sensible exponential backoff for storage retries.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}

// ErrPermanent wraps an error that must not be retried, e.g. a missing
// descriptor or corrupt metadata. Storage back-ends return it directly so
// Do can fail terminally without burning through the retry budget.
type ErrPermanent struct {
	Err error
}

func (e *ErrPermanent) Error() string { return e.Err.Error() }
func (e *ErrPermanent) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &ErrPermanent{Err: err}
}

// Do executes fn with exponential backoff. It stops immediately, without
// consuming retries, if fn returns an error wrapping ErrPermanent.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *ErrPermanent
		if errors.As(err, &perm) {
			return perm.Err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
