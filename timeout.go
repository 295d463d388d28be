package specbind

import (
	"context"
	"time"
)

// WithTimeout bounds every operation handler with a deadline on the context
// it receives. A handler that gives up with context.DeadlineExceeded, or
// returns after the deadline, is answered with 503 Service Unavailable and
// its result is discarded.
func WithTimeout(d time.Duration) AppOption {
	return func(c *appConfig) {
		c.timeout = d
	}
}

// withDeadline replaces the context of req for the handler call.
func withDeadline(req *Request, d time.Duration) context.CancelFunc {
	if d <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithTimeout(req.ctx, d)
	req.ctx = ctx
	return cancel
}
