package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
)

var errTransient = errors.New("transient")

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		ShouldRetry:  func(err error) bool { return errors.Is(err, errTransient) },
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		}, fastRetry(3))

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return errTransient
		}, fastRetry(3))

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetries)
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-retryable error fails immediately", func(t *testing.T) {
		fatal := errors.New("bad request")
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return fatal
		}, fastRetry(3))

		assert.Equal(t, fatal, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retryable marker set to false stops retries", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return &RetryableError{Err: errTransient, Retryable: false}
		}, fastRetry(3))

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancellation stops backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		opts := fastRetry(5)
		opts.InitialDelay = time.Second

		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			cancel()
			return errTransient
		}, opts)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("default predicate honours retryable marker", func(t *testing.T) {
		calls := 0
		opts := fastRetry(2)
		opts.ShouldRetry = nil
		err := WithRetry(context.Background(), func() error {
			calls++
			return &RetryableError{Err: errTransient, Retryable: true}
		}, opts)

		assert.ErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 2, calls)
	})

	t.Run("backoff grows then holds at the cap", func(t *testing.T) {
		opts := fastRetry(5)
		opts.MaxDelay = 3 * time.Millisecond

		var stamps []time.Time
		err := WithRetry(context.Background(), func() error {
			stamps = append(stamps, time.Now())
			return errTransient
		}, opts)
		require.ErrorIs(t, err, ErrMaxRetries)
		require.Len(t, stamps, 5)

		want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}
		for i, floor := range want {
			gap := stamps[i+1].Sub(stamps[i])
			assert.GreaterOrEqual(t, gap, floor, "gap before attempt %d", i+2)
		}
	})
}

func TestNextDelay(t *testing.T) {
	opts := DefaultRetryOptions()

	var got []time.Duration
	delay := opts.InitialDelay
	for range 7 {
		got = append(got, delay)
		delay = nextDelay(delay, opts)
	}

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}, got)
}

func TestDefaultRetryOptions(t *testing.T) {
	opts := DefaultRetryOptions()
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, time.Second, opts.InitialDelay)
	assert.Equal(t, 30*time.Second, opts.MaxDelay)
	assert.InDelta(t, 2.0, opts.Multiplier, 0)
}
