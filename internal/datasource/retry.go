package datasource

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
)

// Retrying retries operations that fail with a retryable backend error.
// Rejections and mapping errors are returned immediately.
type Retrying struct {
	Source
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// NewRetrying wraps src so each operation is attempted up to retries+1 times,
// waiting an exponentially growing, jittered interval starting at backoff
// between attempts.
func NewRetrying(src Source, retries int, backoff time.Duration, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{Source: src, retries: retries, backoff: backoff, logger: logger}
}

// Execute runs op, retrying transient failures. When ctx ends while waiting,
// the last backend error is returned.
func (r *Retrying) Execute(ctx context.Context, op domain.Operation) (*domain.Result, error) {
	var lastErr error
	attempt := 0

	operation := func() (*domain.Result, error) {
		attempt++
		res, err := r.Source.Execute(ctx, op)
		if err == nil {
			return res, nil
		}
		lastErr = err

		// Don't retry on context cancellation or non-transient errors
		if ctx.Err() != nil || !domain.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.backoff
	if b.MaxInterval < r.backoff {
		b.MaxInterval = r.backoff
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.retries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.DebugContext(ctx, "retrying data source operation",
				slog.String("data_source", r.Name()),
				slog.String("operation", string(op.Kind)),
				slog.Int("attempt", attempt+1),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		if lastErr == nil {
			return nil, err
		}
		return nil, lastErr
	}
	return res, nil
}
