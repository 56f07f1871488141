package internal

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// rateLimiter is a per-client token bucket.
type rateLimiter struct {
	mu    sync.Mutex
	store map[string]*rateEntry
	rps   float64
	burst float64
	ttl   time.Duration
	now   func() time.Time
	// swept is when idle entries were last removed.
	swept time.Time
}

type rateEntry struct {
	tokens float64
	last   time.Time
}

// NewRateLimitHandler limits next to rps requests per second per client.
// Clients idle for longer than ttl are forgotten. rps <= 0 disables limiting.
func NewRateLimitHandler(next http.Handler, rps int64, burst int64, ttl time.Duration) http.Handler {
	if rps <= 0 {
		return next
	}
	limiter := newRateLimiter(float64(rps), float64(burst), ttl)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(clientIP(r)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newRateLimiter(rps, burst float64, ttl time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = rps
		if burst < 1 {
			burst = 1
		}
	}
	l := &rateLimiter{
		store: make(map[string]*rateEntry),
		rps:   rps,
		burst: burst,
		ttl:   ttl,
		now:   time.Now,
	}
	l.swept = l.now()
	return l
}

func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	entry, ok := l.store[key]
	if !ok {
		l.store[key] = &rateEntry{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(entry.last).Seconds()
	entry.tokens += elapsed * l.rps
	if entry.tokens > l.burst {
		entry.tokens = l.burst
	}
	entry.last = now

	if entry.tokens < 1 {
		return false
	}
	entry.tokens -= 1
	return true
}

// evict drops clients idle for longer than ttl. It scans the store at most
// once per ttl. Must be called with l.mu held.
func (l *rateLimiter) evict(now time.Time) {
	if l.ttl <= 0 || now.Sub(l.swept) < l.ttl {
		return
	}
	l.swept = now
	for key, entry := range l.store {
		if now.Sub(entry.last) > l.ttl {
			delete(l.store, key)
		}
	}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
