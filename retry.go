package bookmarkdp

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryDelay is the default delay between attempts of a retried
// operation.
const DefaultRetryDelay = 500 * time.Millisecond

// RetryPolicy bounds the re-attempts of an operation.
type RetryPolicy struct {
	// Count is the number of re-attempts after the first failure.
	Count int

	// Delay is the fixed wait between attempts.
	Delay time.Duration

	// Logf, when set, receives a line per failed attempt.
	Logf func(string, ...interface{})
}

// Retry runs op up to p.Count+1 times, waiting p.Delay between failed
// attempts. It returns the first successful result, or the last error
// unmodified once all attempts failed. A cancelled ctx stops the retries
// with the context's error.
func Retry[T any](ctx context.Context, p RetryPolicy, name string, op func(context.Context) (T, error)) (T, error) {
	count := p.Count
	if count < 0 {
		count = 0
	}

	var bo backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	bo = backoff.WithContext(backoff.WithMaxRetries(bo, uint64(count)), ctx)

	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		return op(ctx)
	}, bo, func(err error, next time.Duration) {
		if p.Logf != nil {
			p.Logf("%s: attempt %d/%d failed: %v; retrying in %v", name, attempt, count+1, err, next)
		}
	})
}
