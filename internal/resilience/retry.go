// Package resilience retries transient failures with exponential backoff.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig tunes Retry. Zero fields fall back to defaults.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable reports whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

// policy returns the exponential backoff schedule allowing MaxAttempts calls.
func (c RetryConfig) policy() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialDelay,
		RandomizationFactor: c.JitterFraction,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxDelay,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1))
}

// Retry calls fn until it succeeds, the attempts run out, the error is not
// retryable, or ctx is done. The last error is wrapped in the result.
func Retry(ctx context.Context, log *zap.Logger, name string, cfg RetryConfig, fn func(context.Context) error) error {
	cfg = cfg.withDefaults()
	log = log.With(zap.String("component", "retry"), zap.String("operation", name))

	var (
		attempt   int
		permanent bool
	)
	op := func() error {
		attempt++
		err := fn(ctx)
		if err != nil && cfg.Retryable != nil && !cfg.Retryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Warn("operation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("next_delay", next),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(cfg.policy(), ctx), notify)
	switch {
	case err == nil:
		if attempt > 1 {
			log.Info("succeeded after retry", zap.Int("attempt", attempt))
		}
		return nil
	case permanent:
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctx.Err())
	default:
		return fmt.Errorf("all %d attempts failed for %s: %w", attempt, name, err)
	}
}
