// Package jobpoll adapts a submit-then-poll job API into one bounded
// synchronous call. Every long-running provider job goes through Await
// instead of hand-rolling its own polling loop.
package jobpoll

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrJobFailed means the provider reported a terminal failure status.
	ErrJobFailed = errors.New("job failed")
	// ErrJobTimeout means the attempt budget ran out before a terminal status.
	ErrJobTimeout = errors.New("job did not finish within the poll budget")

	errStillPending = errors.New("job still pending")
)

type Config struct {
	Interval    time.Duration
	MaxAttempts uint64
}

// DefaultConfig bounds the wait at roughly twenty seconds.
func DefaultConfig() Config {
	return Config{Interval: time.Second, MaxAttempts: 20}
}

// PollFunc reports the current state of a remote job. done=true means out is
// the final output. A non-nil error is terminal and ends the wait; a pending
// job returns (zero, false, nil).
type PollFunc[T any] func(ctx context.Context) (out T, done bool, err error)

// Await polls until poll reports done, a terminal error, or cfg.MaxAttempts
// status fetches have been made. There is no mid-poll cancellation besides
// ctx: an abandoned job keeps running on the provider side.
func Await[T any](ctx context.Context, cfg Config, poll PollFunc[T]) (T, error) {
	var out T
	if cfg.MaxAttempts == 0 {
		return out, ErrJobTimeout
	}

	backoff := retry.WithMaxRetries(cfg.MaxAttempts-1, retry.NewConstant(cfg.Interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		o, done, err := poll(ctx)
		if err != nil {
			return err
		}
		if !done {
			return retry.RetryableError(errStillPending)
		}
		out = o
		return nil
	})
	if err != nil {
		var zero T
		if errors.Is(err, errStillPending) {
			return zero, ErrJobTimeout
		}
		return zero, err
	}
	return out, nil
}
