package txn

import (
	"context"
	"time"

	back "github.com/cenkalti/backoff/v4"

	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

const (
	DefaultMaxAttempts = 5
	retryInterval      = 20 * time.Millisecond
	retryMaxInterval   = time.Second
)

// RetryPolicy decides whether a failed attempt should be replayed.
type RetryPolicy func(err error) bool

func newBackOff(ctx context.Context, maxAttempts int) back.BackOff {
	bf := back.NewExponentialBackOff()
	bf.InitialInterval = retryInterval
	bf.MaxInterval = retryMaxInterval
	bf.MaxElapsedTime = 0
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return back.WithContext(back.WithMaxRetries(bf, uint64(maxAttempts-1)), ctx)
}

// Retry runs fn up to maxAttempts times while retryable(err) holds. Other
// errors are returned immediately and unchanged.
func Retry(ctx context.Context, log *logger.Logger, op string, maxAttempts int, retryable RetryPolicy, fn func(attempt int) error) error {
	attempt := 0
	return back.RetryNotify(
		func() error {
			attempt++
			err := fn(attempt)
			if err == nil {
				return nil
			}
			if retryable == nil || !retryable(err) {
				return back.Permanent(err)
			}
			return err
		},
		newBackOff(ctx, maxAttempts),
		func(err error, wait time.Duration) {
			if log != nil {
				log.Warn("transaction retrying", "op", op, "attempt", attempt, "wait", wait.String(), "error", err)
			}
		},
	)
}
