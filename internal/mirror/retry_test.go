package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func recordingPolicy(maxRetries int, base time.Duration) (retryPolicy, *[]time.Duration, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	p := newRetryPolicy(maxRetries, base, zap.New(core))
	var waits []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return p, &waits, logs
}

func TestRetryBacksOffAndLogsAttempts(t *testing.T) {
	p, waits, logs := recordingPolicy(3, time.Second)
	calls := 0
	err := p.do(context.Background(), []zap.Field{zap.Uint64("from", 1)}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errUnavailable
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)

	failed := logs.FilterMessage("mirror write failed").All()
	require.Len(t, failed, 2)
	assert.Equal(t, int64(2), failed[1].ContextMap()["attempt"])
	assert.Equal(t, uint64(1), failed[1].ContextMap()["from"])
	assert.Equal(t, 1, logs.FilterMessage("mirror write recovered").Len())
}

func TestRetryGivesUp(t *testing.T) {
	p, waits, logs := recordingPolicy(2, time.Millisecond)
	calls := 0
	err := p.do(context.Background(), nil, func(context.Context) error {
		calls++
		return errUnavailable
	})
	require.ErrorIs(t, err, errUnavailable)
	assert.Equal(t, 3, calls)
	assert.Len(t, *waits, 2)
	assert.Equal(t, 1, logs.FilterMessage("mirror write giving up").Len())
}

func TestRetryCapsDelay(t *testing.T) {
	p, waits, _ := recordingPolicy(4, 20*time.Second)
	_ = p.do(context.Background(), nil, func(context.Context) error { return errUnavailable })
	assert.Equal(t, []time.Duration{20 * time.Second, maxRetryDelay, maxRetryDelay, maxRetryDelay}, *waits)
}

func TestRetryStopsOnCancellation(t *testing.T) {
	p, waits, _ := recordingPolicy(5, time.Millisecond)
	calls := 0
	err := p.do(context.Background(), nil, func(context.Context) error {
		calls++
		return errors.Join(errUnavailable, context.Canceled)
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = p.do(ctx, nil, func(context.Context) error {
		calls++
		return errUnavailable
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNewRetryPolicyDefaults(t *testing.T) {
	p := newRetryPolicy(-1, 0, nil)
	assert.Zero(t, p.maxRetries)
	assert.Equal(t, defaultRetryDelay, p.baseDelay)
	require.NotNil(t, p.logger)
}
