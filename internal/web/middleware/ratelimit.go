package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a fixed-window request counter per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	now      func() time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// NewRateLimiter allows rate requests per window for each client.
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
}

// Run drops idle visitors once per window until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

// Allow consumes one request for key and reports whether it fits the window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[key]
	if !ok || now.Sub(v.lastReset) > rl.window {
		rl.visitors[key] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return rl.rate > 0
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// Handler rejects requests over the limit with 429 and a Retry-After header.
// Requests are keyed by r.RemoteAddr, which TrustedRealIP has already resolved.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(rl.window.Seconds()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", retryAfter)
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE001")
			return
		}
		next.ServeHTTP(w, r)
	})
}
