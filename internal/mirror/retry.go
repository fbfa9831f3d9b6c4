package mirror

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// retryPolicy retries store writes with exponential backoff capped at
// maxRetryDelay.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
	// sleep waits for d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetryPolicy(maxRetries int, baseDelay time.Duration, logger *zap.Logger) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return retryPolicy{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger, sleep: sleepCtx}
}

// do runs fn until it succeeds or the retries are spent. Cancellation of ctx,
// whether seen by fn or while waiting, ends the loop at once.
func (p retryPolicy) do(ctx context.Context, fields []zap.Field, fn func(context.Context) error) error {
	delay := p.baseDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				p.logger.Info("mirror write recovered", append(fields, zap.Int("attempt", attempt))...)
			}
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt > p.maxRetries {
			p.logger.Error("mirror write giving up", append(fields, zap.Int("attempts", attempt), zap.Error(err))...)
			return err
		}

		p.logger.Warn("mirror write failed",
			append(fields, zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))...)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
