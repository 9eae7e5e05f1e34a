package retry

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

// RetryableFunc is one attempt of an operation
type RetryableFunc func(ctx context.Context) error

// RetryConfig holds the configuration for retrying operations
type RetryConfig struct {
	MaxAttempts     int
	BackoffStrategy BackoffStrategy
	Logger          logger.Logger
	// ShouldRetry classifies errors; defaults to errors.IsRetryable.
	ShouldRetry func(error) bool
}

// Retry runs fn until it succeeds, returns a non-retryable error, runs out
// of attempts or ctx is done.
func Retry(ctx context.Context, fn RetryableFunc, cfg *RetryConfig) error {
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = apperrors.IsRetryable
	}

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled by context: %w", err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		if !shouldRetry(err) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("Non-retryable error encountered, giving up", "error", err, "attempt", attempt)
			}
			return err
		}

		backoff := cfg.BackoffStrategy.NextBackoff(attempt)

		if cfg.Logger != nil {
			cfg.Logger.Info("Retrying after error",
				"error", err,
				"attempt", attempt,
				"maxAttempts", attempts,
				"backoff", backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled by context during backoff: %w", ctx.Err())
		}
	}

	return fmt.Errorf("all %d retry attempts failed, last error: %w", attempts, lastErr)
}
