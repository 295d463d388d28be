package specbind

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-client rate limiting of operation routes.
type RateLimitConfig struct {
	Rate            float64               // requests per second
	Burst           int                   // max burst
	KeyFunc         func(*Request) string // default: remote IP
	CleanupInterval time.Duration         // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration         // remove limiters idle longer than this (default: 5m)
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = remoteIP
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 * time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &rateLimiter{cfg: cfg, limiters: make(map[string]*limiterEntry)}
}

// allow returns a 429 problem when the caller is over its limit. A nil
// limiter allows everything.
func (l *rateLimiter) allow(req *Request) error {
	if l == nil {
		return nil
	}

	key := l.cfg.KeyFunc(req)

	l.mu.Lock()
	now := time.Now()

	// Lazy cleanup of expired limiters.
	if now.Sub(l.lastCleanup) >= l.cfg.CleanupInterval {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.cfg.MaxIdle {
				delete(l.limiters, k)
			}
		}
		l.lastCleanup = now
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst),
		}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	if entry.limiter.Allow() {
		return nil
	}

	retryAfter := 1
	if l.cfg.Rate > 0 && l.cfg.Rate < 1 {
		retryAfter = int(1/l.cfg.Rate + 0.5)
	}
	tooMany := HTTPStatusError(http.StatusTooManyRequests)
	return &ProblemError{
		Status:  tooMany.Status,
		Title:   tooMany.Name,
		Detail:  tooMany.Description,
		Headers: http.Header{"Retry-After": {strconv.Itoa(retryAfter)}},
	}
}

func remoteIP(req *Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
