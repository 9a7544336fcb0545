package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimiter applies a per-client leaky bucket using Uber's ratelimit
// library. Clients are keyed by remote IP.
type RateLimiter struct {
	rps      int
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// client IP.
func NewRateLimiter(rps int, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{rps: rps, logger: logger}
}

func (rl *RateLimiter) limiterFor(key string) ratelimit.Limiter {
	if l, ok := rl.limiters.Load(key); ok {
		return l.(ratelimit.Limiter)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters.Load(key); ok {
		return l.(ratelimit.Limiter)
	}
	l := ratelimit.New(rl.rps)
	rl.limiters.Store(key, l)
	return l
}

// Middleware rejects requests that exceed the per-client rate with 429.
// Take returns the time the next slot frees up; a non-negligible wait means
// the bucket is saturated and the request is rejected rather than queued.
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				key = r.RemoteAddr
			}

			now := time.Now()
			wait := rl.limiterFor(key).Take().Sub(now)
			if wait > time.Millisecond {
				rl.logger.Warn("Rate limit exceeded",
					zap.String("client", key),
					zap.String("path", r.URL.Path),
					zap.Duration("retry_after", wait),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				WriteJSONError(w, http.StatusTooManyRequests, "Too Many Requests", TraceIDFromRequest(r))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
