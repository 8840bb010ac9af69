package chain

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy bounds RPC calls: up to MaxAttempts tries with exponential
// backoff starting at Interval. Calls that are expected to come back empty
// (a receipt before inclusion) bypass it and use a single attempt.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultRetryPolicy matches the indexer defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, Interval: 500 * time.Millisecond}
}

// Do runs op with the policy's backoff schedule
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, name string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	if p.Interval > 0 {
		bo.InitialInterval = p.Interval
	}

	var schedule backoff.BackOff = backoff.WithContext(bo, ctx)
	if p.MaxAttempts > 0 {
		schedule = backoff.WithMaxRetries(schedule, uint64(p.MaxAttempts-1))
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("RPC call failed, retrying",
			zap.String("call", name),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return backoff.RetryNotify(op, schedule, notify)
}

// retryCall wraps a value-returning RPC call with the policy
func retryCall[T any](ctx context.Context, p RetryPolicy, logger *zap.Logger, name string, op func() (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, logger, name, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	})
	return result, err
}
