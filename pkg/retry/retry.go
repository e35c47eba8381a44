package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/pkg/logger"
)

// Policy is an explicit retry contract applied at the call site of an
// external collaborator: attempt cap, exponential backoff, delay cap.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default returns the standard policy for upstream calls
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Permanent wraps an error that must not be retried
type Permanent struct {
	Err error
}

// Error implements the error interface
func (p Permanent) Error() string {
	return p.Err.Error()
}

// Unwrap exposes the wrapped error
func (p Permanent) Unwrap() error {
	return p.Err
}

// Do runs op until it succeeds, returns a Permanent error, or the
// attempt cap is reached. Backoff doubles per attempt up to MaxDelay
// and respects context cancellation.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.backoff(attempt)
			logger.Debug("retrying upstream call",
				zap.String("call", name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", p.MaxAttempts),
				zap.Duration("backoff", delay),
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		if perm, ok := err.(Permanent); ok {
			logger.Warn("non-retryable error, aborting",
				zap.String("call", name),
				zap.Error(perm.Err),
			)
			return perm.Err
		}

		lastErr = err
		logger.Warn("upstream call failed",
			zap.String("call", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, p.MaxAttempts, lastErr)
}

func (p Policy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 2; i < attempt; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
