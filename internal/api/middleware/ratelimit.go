package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/equicloud/equicloud/internal/logger"
)

// clientLimiter tracks one client's token bucket and its last use, so
// idle entries can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP with a token bucket.
// Buckets refill at the configured rate and allow short bursts; clients
// over budget receive 429.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter

	perSecond rate.Limit
	burst     int

	// OnReject, when set, is called for each rejected request.
	OnReject func()
}

// NewRateLimiter creates a limiter allowing perSecond sustained
// requests with the given burst per client. It starts a background
// sweep that drops buckets idle for more than three minutes.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients:   make(map[string]*clientLimiter),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
	}
	go rl.sweep()
	return rl
}

// Handler wraps next with the rate limit. It keys on r.RemoteAddr,
// which the RealIP middleware has already rewritten to the client
// address when the request came through a proxy.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			logger.Warn("Rate limit exceeded", "client", r.RemoteAddr, "path", r.URL.Path)
			if rl.OnReject != nil {
				rl.OnReject()
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.clients[client]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.perSecond, rl.burst)}
		rl.clients[client] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-3 * time.Minute)
		rl.mu.Lock()
		for client, entry := range rl.clients {
			if entry.lastSeen.Before(cutoff) {
				delete(rl.clients, client)
			}
		}
		rl.mu.Unlock()
	}
}
