package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audience/internal/config"
	pkgerrors "audience/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
		MaxElapsedTime:  time.Second,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	cause := errors.New("server selection timeout")
	calls := 0

	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestRetry_FatalErrorIsNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(errors.New("authentication failed"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_NonRetryableAppError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return pkgerrors.ErrInvalidInput.WithMessage("bad rule")
	})

	assert.True(t, pkgerrors.IsInvalidInput(err))
	assert.Equal(t, 1, calls)
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var attempts []int
	calls := 0

	err := RetryWithCallback(context.Background(), fastPolicy(4), func() error {
		calls++
		if calls < 4 {
			return errors.New("unavailable")
		}
		return nil
	}, func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
		assert.Error(t, err)
		assert.LessOrEqual(t, next, 5*time.Millisecond+5*time.Millisecond/2)
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastPolicy(10), func() error {
		calls++
		return errors.New("unavailable")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestPolicyFromConfig(t *testing.T) {
	policy := PolicyFromConfig(config.RetryConfig{MaxAttempts: 7, InitialInterval: 2 * time.Second})

	assert.Equal(t, 7, policy.MaxAttempts)
	assert.Equal(t, 2*time.Second, policy.InitialInterval)
	assert.Equal(t, DefaultPolicy().MaxInterval, policy.MaxInterval)
	assert.Equal(t, DefaultPolicy().Multiplier, policy.Multiplier)
	assert.Equal(t, DefaultPolicy().MaxElapsedTime, policy.MaxElapsedTime)
}
