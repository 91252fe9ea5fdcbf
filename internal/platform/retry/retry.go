// Package retry wraps startup connections to backing services in an
// exponential backoff so the gateway tolerates dependencies that come up late.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds a connection attempt loop.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultPolicy retries for up to 30 seconds.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsed:      30 * time.Second,
	}
}

// Connect calls connect until it succeeds, ctx ends, or p.MaxElapsed passes.
// Each failed attempt is logged with the dependency name.
func Connect[T any](ctx context.Context, logger *slog.Logger, name string, p Policy, connect func(ctx context.Context) (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = 2

	return backoff.Retry(ctx,
		func() (T, error) { return connect(ctx) },
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(p.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "dependency not ready, retrying",
				"dependency", name,
				"retry_in", next.String(),
				"error", err,
			)
		}),
	)
}
