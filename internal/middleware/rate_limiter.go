package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RateLimiter enforces a per-IP request ceiling, independent of the
// per-wallet payment throttle. It protects the unpaid endpoints (session
// creation, status, history) from being hammered.
//
// Uses a sliding window: each window tracks request counts per IP, and
// expired windows are garbage-collected periodically.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
}

type window struct {
	count int
	start time.Time
}

// NewRateLimiter creates a rate limiter allowing maxPerMinute requests per
// IP. A background goroutine reclaims expired windows.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	if maxPerMinute <= 0 {
		maxPerMinute = 60
	}
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   maxPerMinute,
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether a request from the key is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, exists := rl.windows[key]
	if !exists || now.Sub(w.start) > time.Minute {
		rl.windows[key] = &window{count: 1, start: now}
		return true
	}

	w.count++
	if w.count > rl.limit {
		slog.Warn("[RateLimit] Request rejected", "key", key, "count", w.count, "limit", rl.limit)
		return false
	}
	return true
}

// Middleware enforces the limit per client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","retry_after_seconds":60}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, w := range rl.windows {
			if now.Sub(w.start) > 2*time.Minute {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}
