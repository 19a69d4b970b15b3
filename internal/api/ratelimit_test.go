package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Hour)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("clients are limited independently")
	}
	if got := rl.RetryAfter("a"); got != 3601 {
		t.Fatalf("retry after = %d, want 3601", got)
	}

	now = now.Add(time.Hour)
	if !rl.Allow("a") {
		t.Fatal("window reset should allow again")
	}
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(5 * time.Minute)
	rl.Allow("b")

	if _, ok := rl.buckets["a"]; ok {
		t.Fatal("idle bucket not swept")
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:5123"
	if got := clientAddr(r); got != "10.0.0.7" {
		t.Fatalf("clientAddr = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.4, 10.0.0.1")
	if got := clientAddr(r); got != "203.0.113.4" {
		t.Fatalf("clientAddr with proxy = %q", got)
	}
}
