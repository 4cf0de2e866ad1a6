// Package netutil holds small network helpers.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultPortInterval is the pause between two connection attempts.
const DefaultPortInterval = 5 * time.Second

// WaitForPort waits until host accepts TCP connections on port, trying
// every interval for at most timeout.
func WaitForPort(ctx context.Context, host string, port int, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = DefaultPortInterval
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	for {
		attemptCtx, attemptCancel := context.WithTimeout(ctx, 2*time.Second)
		conn, err := dialer.DialContext(attemptCtx, "tcp", address)
		attemptCancel()
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timeout waiting for %s", address)
			}
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
