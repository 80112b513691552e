package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/radudiaconu0/sockudo/internal/platform/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Millisecond,
}

func alwaysRetry(error) retry.Action { return retry.Retry }
func alwaysStop(error) retry.Action  { return retry.Stop }

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysStop, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, permanent
	})

	_, ok := errors.AsType[*retry.PermanentError](err)
	assert.True(t, ok, "expected PermanentError, got %T", err)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedRetries(t *testing.T) {
	transient := errors.New("transient")
	var retries []int
	policy := fastPolicy
	policy.OnRetry = func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }

	_, err := retry.Do(context.Background(), policy, alwaysRetry, func(context.Context) (struct{}, error) {
		return struct{}{}, transient
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDo_BackoffDoublesUpToCap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var backoffs []time.Duration
	policy := retry.Policy{
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     3 * time.Second,
		Clock:          clock,
		OnRetry:        func(_ int, _ error, b time.Duration) { backoffs = append(backoffs, b) },
	}

	done := make(chan error, 1)
	go func() {
		_, err := retry.Do(context.Background(), policy, alwaysRetry, func(context.Context) (struct{}, error) {
			return struct{}{}, errors.New("transient")
		})
		done <- err
	}()

	for range 3 {
		require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
		clock.Advance(3 * time.Second)
	}

	require.Error(t, <-done)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, backoffs)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := retry.Policy{MaxAttempts: 5, InitialBackoff: time.Hour}

	_, err := retry.Do(ctx, policy, alwaysRetry, func(context.Context) (struct{}, error) {
		cancel()
		return struct{}{}, errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_InvalidPolicy(t *testing.T) {
	_, err := retry.Do(context.Background(), retry.Policy{}, alwaysRetry, func(context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	assert.Error(t, err)
}

func TestRetryAll(t *testing.T) {
	assert.Equal(t, retry.Retry, retry.RetryAll(errors.New("dial tcp: connection refused")))
	assert.Equal(t, retry.Stop, retry.RetryAll(context.Canceled))
	assert.Equal(t, retry.Stop, retry.RetryAll(context.DeadlineExceeded))
}
