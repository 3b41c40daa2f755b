package influx

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const initialRetryInterval = 100 * time.Millisecond

// retry runs op until it succeeds, returns a permanent error, ctx is done or
// window has elapsed. Status errors that cannot succeed on retry stop at once.
func retry(ctx context.Context, window time.Duration, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialRetryInterval
	b.MaxInterval = window
	b.MaxElapsedTime = window
	return backoff.Retry(func() error {
		err := op()
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
