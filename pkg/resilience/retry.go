package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// RetryConfig controls the exponential backoff schedule. With MaxRetries=3
// and BaseDelay=2s the delays are 2s, 4s, 8s. The schedule is deterministic
// so that a unit's total retry wait is predictable per source.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64

	// OnRetry, if set, is invoked before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		Multiplier: 2.0,
	}
}

// Retry runs fn, retrying on errors for which shouldRetry returns true.
// Non-retryable errors are returned immediately. A nil shouldRetry retries
// every error.
func Retry(ctx context.Context, name string, cfg RetryConfig, shouldRetry func(error) bool, fn func() error) error {
	defaults := defaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = defaults.Multiplier
	}
	logger := slog.Default().With("component", "retry", "operation", name)
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
		delay := computeDelay(attempt, cfg)
		logger.Warn("operation failed, retrying",
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"error", lastErr,
			"next_delay", delay,
		)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr, delay)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}
	}
	return fmt.Errorf("all %d retries failed for %s: %w", cfg.MaxRetries, name, lastErr)
}

func computeDelay(attempt int, cfg RetryConfig) time.Duration {
	return time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
}
