package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"engagehub/internal/response"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// idle limiters are dropped after this long
const limiterIdleTTL = 5 * time.Minute

type clientLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimiter applies a token bucket per client IP
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	builder *response.Builder
	now     func() time.Time

	// whole seconds until one token refills
	retryAfter int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

// NewRateLimiter allows perMinute requests per client with a burst of half that
func NewRateLimiter(perMinute int, builder *response.Builder) *RateLimiter {
	perMinute = max(perMinute, 1)
	return &RateLimiter{
		limit:      rate.Every(time.Minute / time.Duration(perMinute)),
		burst:      max(perMinute/2, 1),
		builder:    builder,
		now:        time.Now,
		retryAfter: max((60+perMinute-1)/perMinute, 1),
		limiters:   make(map[string]*clientLimiter),
	}
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if !rl.allow(ip) {
			GetRequestLogger(r.Context()).Warn("Rate limit exceeded",
				zap.String("event", "rate_limited"),
				zap.String("client_ip", ip),
			)
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter))
			rl.builder.WriteStatus(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for k, l := range rl.limiters {
		if now.After(l.expires) {
			delete(rl.limiters, k)
		}
	}

	l, ok := rl.limiters[key]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = l
	}
	l.expires = now.Add(limiterIdleTTL)

	return l.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked client buckets
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
