package llmclient

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rlm-engine/metrics"
)

// RetryingCaller wraps a Caller with exponential backoff. Rate-limit failures
// burn the whole retry budget before the last error surfaces; other retryable
// failures propagate from the final attempt; auth and bad-request failures
// propagate immediately.
type RetryingCaller struct {
	inner      Caller
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func NewRetryingCaller(inner Caller, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *RetryingCaller {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryingCaller{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

func (r *RetryingCaller) Call(ctx context.Context, req Request) (Response, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		resp, err := r.inner.Call(ctx, req)
		if err == nil {
			return resp, nil
		}

		switch {
		case IsRateLimit(err):
			lastErr = err
			metrics.RetryAttemptsTotal.Inc()
			r.logger.Warn("Rate limited, backing off",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", r.maxRetries))
			if waitErr := r.backoff(ctx, attempt); waitErr != nil {
				return Response{}, waitErr
			}
		case IsRetryable(err):
			if attempt == r.maxRetries-1 {
				return Response{}, err
			}
			metrics.RetryAttemptsTotal.Inc()
			r.logger.Warn("Transient model API failure, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if waitErr := r.backoff(ctx, attempt); waitErr != nil {
				return Response{}, waitErr
			}
		default:
			return Response{}, err
		}
	}
	return Response{}, lastErr
}

// CallResult is the outcome of an asynchronous call.
type CallResult struct {
	Response Response
	Err      error
}

// CallAsync runs Call in a goroutine and delivers the outcome on the
// returned channel. The channel is buffered so the goroutine never leaks.
func (r *RetryingCaller) CallAsync(ctx context.Context, req Request) <-chan CallResult {
	ch := make(chan CallResult, 1)
	go func() {
		resp, err := r.Call(ctx, req)
		ch <- CallResult{Response: resp, Err: err}
	}()
	return ch
}

func (r *RetryingCaller) backoff(ctx context.Context, attempt int) error {
	delay := r.baseDelay * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
