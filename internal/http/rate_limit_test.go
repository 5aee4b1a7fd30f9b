package httpx

import (
	"testing"
	"time"
)

func TestMemoryRateLimiterEnforcesWindow(t *testing.T) {
	limiter := NewMemoryRateLimiter()
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		if decision := limiter.Allow("ip:1.2.3.4", 3, time.Minute); !decision.allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	decision := limiter.Allow("ip:1.2.3.4", 3, time.Minute)
	if decision.allowed {
		t.Fatal("fourth request should be rejected")
	}
	if decision.windowEnd.IsZero() {
		t.Fatal("rejection must carry the window end")
	}

	// A different key is unaffected.
	if decision := limiter.Allow("ip:5.6.7.8", 3, time.Minute); !decision.allowed {
		t.Fatal("separate key must have its own window")
	}
}

func TestMemoryRateLimiterZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryRateLimiter()
	defer limiter.Close()

	for i := 0; i < 100; i++ {
		if decision := limiter.Allow("any", 0, time.Minute); !decision.allowed {
			t.Fatal("zero limit must allow everything")
		}
	}
}

func TestMemoryRateLimiterCloseStopsSweep(t *testing.T) {
	limiter := NewMemoryRateLimiter().(*memoryRateLimiter)

	limiter.Close()
	limiter.Close()

	select {
	case <-limiter.stopCh:
	case <-time.After(time.Second):
		t.Fatal("close must release the sweep goroutine")
	}
}

func TestRouteLabelCollapsesIDs(t *testing.T) {
	cases := map[string]string{
		"/users":          "/users",
		"/users/login":    "/users/login",
		"/users/abc-123":  "/users/{id}",
		"/healthz":        "/healthz",
		"/ws/cards":       "/ws/cards",
		"/users/550e8400": "/users/{id}",
	}
	for path, want := range cases {
		if got := routeLabel(path); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
