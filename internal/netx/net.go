// Package netx wraps blocking remote calls that do not accept a context.
package netx

import (
	"context"
	"time"
)

// Call runs fn and waits for it for at most timeout (when timeout > 0) or
// until ctx is done. On expiry it returns ctx.Err() of the derived context,
// typically context.DeadlineExceeded; fn keeps running in the background and
// its result is discarded.
func Call(ctx context.Context, timeout time.Duration, fn func() error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
