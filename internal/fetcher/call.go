package fetcher

import (
	"context"
	"fmt"
	"time"
)

// Call runs fn bounded by timeout. When the deadline passes first the call is
// abandoned, not killed: fn keeps running in the background with a cancelled
// context and whatever it eventually returns is discarded.
// A panic inside fn is reported as an error.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("source panicked: %v", r)
			}
			done <- out
		}()
		out.value, out.err = fn(ctx)
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, NewTimeoutError(ctx.Err())
	}
}
