// Package resilience provides the exponential-backoff retry primitive
// used by the LLM Adapter (call retries) and the connector reconnect
// schedule. It has no circuit breaker, and no Connector calls Retry.
package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64 // 0-1, adds randomness
}

// ConnectorReconnectConfig is the connector's reconnect schedule, max 3
// attempts. Multiplier 3 gives delays of 200ms, 600ms, 1.8s (capped at
// 5s); the schedule has no 1.5s step, and Retry with MaxAttempts 3 waits
// only the first two delays.
func ConnectorReconnectConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   3,
	}
}

// LLMRetryConfig is the LLM call's retry schedule: 1s, 3s, 9s, max 3
// attempts.
func LLMRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     9 * time.Second,
		Multiplier:   3,
	}
}

// Retry executes fn with exponential backoff, stopping early on ctx
// cancellation. It does not itself decide which errors are retryable —
// callers (Connector, LLM Adapter) wrap fn so it returns nil for
// "give up, don't retry" errors.
func Retry(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(addJitter(delay, cfg.Jitter)):
			}
			delay = nextDelay(delay, cfg)
		}
	}
	return lastErr
}

func nextDelay(current time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.Multiplier)
	if cfg.MaxDelay > 0 && next > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return next
}

func addJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	return d + time.Duration(rand.Float64()*delta*2-delta)
}
