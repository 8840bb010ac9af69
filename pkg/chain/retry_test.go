package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, Interval: time.Millisecond}

	attempts := 0
	err := policy.Do(context.Background(), zap.NewNop(), "test", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Interval: time.Millisecond}

	attempts := 0
	err := policy.Do(context.Background(), zap.NewNop(), "test", func() error {
		attempts++
		return errors.New("permanent")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 100, Interval: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, zap.NewNop(), "test", func() error {
		attempts++
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Less(t, attempts, 100)
}

func TestRetryCallReturnsValue(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Interval: time.Millisecond}

	attempts := 0
	v, err := retryCall(context.Background(), policy, zap.NewNop(), "test", func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
