package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	retries := 0
	cfg := fastConfig()
	cfg.OnRetry = func(int, error, time.Duration) { retries++ }

	err := Do(context.Background(), cfg, "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0

	err := Do(context.Background(), fastConfig(), "places", func() error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "places: max retry attempts (3) exceeded")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("REQUEST_DENIED")
	calls := 0

	err := Do(context.Background(), fastConfig(), "places", func() error {
		calls++
		return Permanent(sentinel)
	})

	assert.Equal(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryablePredicate(t *testing.T) {
	calls := 0
	cfg := fastConfig()
	cfg.Retryable = func(err error) bool { return err.Error() == "retry me" }

	err := Do(context.Background(), cfg, "x", func() error {
		calls++
		return errors.New("fatal")
	})

	assert.EqualError(t, err, "fatal")
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), "db", func() error { return nil })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
