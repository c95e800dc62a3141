package middleware

import (
	"runtime"
	"testing"
	"time"
)

func TestRateLimiter_EnforcesLimit(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1", now) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1", now) {
		t.Error("request over the limit should be refused")
	}

	// A different IP has its own window.
	if !rl.allow("10.0.0.2", now) {
		t.Error("different IP should be allowed")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !rl.allow("10.0.0.1", now) {
		t.Fatal("first request should be allowed")
	}
	if rl.allow("10.0.0.1", now.Add(30*time.Second)) {
		t.Error("second request inside the window should be refused")
	}
	if !rl.allow("10.0.0.1", now.Add(61*time.Second)) {
		t.Error("request in a fresh window should be allowed")
	}
}

func TestRateLimiter_SweepsStaleEntries(t *testing.T) {
	rl := newRateLimiter(5, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		rl.allow(ip, now)
	}
	if len(rl.entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(rl.entries))
	}

	// A request two windows later sweeps everything stale.
	rl.allow("10.0.0.9", now.Add(3*time.Minute))

	rl.mu.Lock()
	n := len(rl.entries)
	rl.mu.Unlock()
	if n != 1 {
		t.Errorf("expected stale entries swept down to 1, got %d", n)
	}
}

func TestRateLimit_NoGoroutinePerLimiter(t *testing.T) {
	before := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		_ = RateLimit(5, time.Minute)
	}
	// Allow the scheduler a moment in case anything was spawned.
	time.Sleep(10 * time.Millisecond)
	after := runtime.NumGoroutine()

	if after > before+2 {
		t.Errorf("constructing limiters grew goroutines from %d to %d", before, after)
	}
}
