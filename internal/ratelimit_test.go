package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRateLimiterAllow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter := newRateLimiter(1, 1, 0)
	limiter.now = clock.Now
	limiter.swept = clock.Now()

	if !limiter.allow("client") {
		t.Fatalf("expected first request to be allowed")
	}
	if limiter.allow("client") {
		t.Fatalf("expected second request to be rate limited")
	}
	if !limiter.allow("other") {
		t.Fatalf("expected other client to have its own bucket")
	}

	clock.Advance(1100 * time.Millisecond)

	if !limiter.allow("client") {
		t.Fatalf("expected request after refill to be allowed")
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter := newRateLimiter(1, 1, time.Minute)
	limiter.now = clock.Now
	limiter.swept = clock.Now()

	limiter.allow("a")
	clock.Advance(2 * time.Minute)
	limiter.allow("b")

	if _, ok := limiter.store["a"]; ok {
		t.Fatalf("expected idle client to be evicted")
	}
	if _, ok := limiter.store["b"]; !ok {
		t.Fatalf("expected active client to be tracked")
	}
}

func TestRateLimiterSweepsOncePerTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter := newRateLimiter(1, 1, time.Minute)
	limiter.now = clock.Now
	limiter.swept = clock.Now()

	limiter.store["stale"] = &rateEntry{last: clock.Now().Add(-time.Hour)}
	clock.Advance(30 * time.Second)
	limiter.allow("a")
	if _, ok := limiter.store["stale"]; !ok {
		t.Fatalf("expected no sweep before ttl has passed")
	}

	clock.Advance(31 * time.Second)
	limiter.allow("b")
	if _, ok := limiter.store["stale"]; ok {
		t.Fatalf("expected sweep once ttl has passed")
	}
	if !limiter.swept.Equal(clock.Now()) {
		t.Fatalf("expected sweep time to be recorded")
	}

	limiter.store["stale"] = &rateEntry{last: clock.Now().Add(-time.Hour)}
	clock.Advance(time.Second)
	limiter.allow("c")
	if _, ok := limiter.store["stale"]; !ok {
		t.Fatalf("expected next sweep to wait a full ttl")
	}
}

func TestRateLimitHandler(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := NewRateLimitHandler(next, 1, 1, time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/scm", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

type okHandler struct{}

func (*okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {}

func TestRateLimitHandlerDisabled(t *testing.T) {
	next := &okHandler{}
	if got := NewRateLimitHandler(next, 0, 0, 0); got != http.Handler(next) {
		t.Fatalf("expected next handler to be returned unwrapped")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/scm", nil)
	req.RemoteAddr = "192.0.2.1:4711"
	if ip := clientIP(req); ip != "192.0.2.1" {
		t.Fatalf("expected remote host, got %q", ip)
	}
	req.Header.Set("X-Real-Ip", "198.51.100.7")
	if ip := clientIP(req); ip != "198.51.100.7" {
		t.Fatalf("expected X-Real-Ip, got %q", ip)
	}
}
