// Package retry wraps a fallible thunk with exponential backoff and
// full jitter, as used around every Upstream Adapter call.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/aggrun/internal/domain"
)

// Config controls attempt count and base backoff.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultConfig matches the spec defaults: 3 attempts, 1s base delay.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Second}
}

// Delay returns the wait before attempt k (1-indexed, k>=2):
// base*2^(k-2) plus uniform jitter in [0, 1s).
func Delay(base time.Duration, k int) time.Duration {
	if k < 2 {
		return 0
	}
	backoff := base * time.Duration(1<<uint(k-2))
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return backoff + jitter
}

// Do runs fn up to cfg.MaxAttempts times, waiting Delay between
// attempts. It returns the last error verbatim if every attempt fails.
// ConfigError and context cancellation are never retried.
func Do(ctx context.Context, cfg Config, logger zerolog.Logger, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := Delay(cfg.BaseDelay, attempt)
			logger.Debug().Int("attempt", attempt).Dur("wait", wait).Msg("retrying after backoff")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return domain.Retryable(err)
}
