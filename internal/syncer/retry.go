package syncer

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// sleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isTimeout reports whether err looks like a request timeout. Timeouts get
// a longer retry backoff than other transient failures.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, token := range []string{"timeout", "deadline exceeded", "awaiting headers"} {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
