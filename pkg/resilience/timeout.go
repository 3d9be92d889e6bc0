package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds fn to the given duration. fn receives a derived context
// and is expected to honor its cancellation; when the deadline passes before
// fn returns, the caller gets an error naming the operation while fn winds
// down in the background. A non-positive timeout runs fn unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	boundedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(boundedCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-boundedCtx.Done():
		return fmt.Errorf("%s: %w after %v", name, boundedCtx.Err(), timeout)
	}
}
