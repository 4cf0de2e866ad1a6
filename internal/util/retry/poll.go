package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout is returned by [Poll] when the deadline passes before the
// condition holds.
var ErrPollTimeout = errors.New("timed out waiting for condition")

// Condition reports whether the awaited state was reached. A non-nil error
// stops polling immediately.
type Condition func(ctx context.Context) (done bool, err error)

// Poll evaluates cond every interval until it reports done, returns an
// error, timeout elapses or ctx is cancelled. The first evaluation happens
// immediately. A zero timeout means no deadline.
func Poll(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w after %s", ErrPollTimeout, timeout)
		case <-ticker.C:
		}
	}
}
