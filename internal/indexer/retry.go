package indexer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"logwatch/internal/watch"
)

const defaultRetryBackoff = 100 * time.Millisecond

// retryPolicy retries a request with exponential backoff.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func newRetryPolicy(maxRetries int, baseDelay time.Duration, logger *zap.Logger) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return retryPolicy{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

// do runs fn until it succeeds, fails with an error that retrying cannot
// fix, or runs out of attempts. fields describe the request in logs.
func (p retryPolicy) do(ctx context.Context, op string, fn func(context.Context) error, fields ...zap.Field) error {
	delay := p.baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(ctx, err) {
			p.logger.Warn(op+" failed", append(fields, zap.Error(err))...)
			return err
		}
		if attempt >= p.maxRetries {
			p.logger.Warn(op+" failed, giving up", append(fields, zap.Int("attempts", attempt+1), zap.Error(err))...)
			return err
		}
		p.logger.Warn(op+" failed, retrying",
			append(fields, zap.Int("attempt", attempt+1), zap.Duration("backoff", delay), zap.Error(err))...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// retryable reports whether err may succeed on a later attempt. Requests the
// node rejected as malformed fail the same way every time.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr *watch.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case -32700, -32600, -32601, -32602:
			return false
		}
	}
	return true
}
