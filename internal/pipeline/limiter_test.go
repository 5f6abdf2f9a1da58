package pipeline

import (
	"testing"
	"time"

	"starhollow/engine/logging"
)

func TestRateLimiterCapsPerAgent(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := logging.ClockFunc(func() time.Time { return now })
	limiter := NewRateLimiter(clock, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("agent-1") {
			t.Fatalf("expected command %d within the window to pass", i)
		}
	}
	if limiter.Allow("agent-1") {
		t.Fatalf("expected fourth command in the window to be rejected")
	}
	if !limiter.Allow("agent-2") {
		t.Fatalf("limits must be tracked per agent")
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := logging.ClockFunc(func() time.Time { return now })
	limiter := NewRateLimiter(clock, 1)

	if !limiter.Allow("agent") {
		t.Fatalf("first command should pass")
	}
	if limiter.Allow("agent") {
		t.Fatalf("second command in the same window should fail")
	}
	now = now.Add(time.Second)
	if !limiter.Allow("agent") {
		t.Fatalf("budget should reset after the window elapses")
	}
}

func TestRateLimiterExemptions(t *testing.T) {
	limiter := NewRateLimiter(logging.SystemClock{}, 0)
	for i := 0; i < 1000; i++ {
		if !limiter.Allow("agent") {
			t.Fatalf("non-positive limit must disable limiting")
		}
	}
	limited := NewRateLimiter(logging.SystemClock{}, 1)
	for i := 0; i < 10; i++ {
		if !limited.Allow("") {
			t.Fatalf("empty agent must be exempt")
		}
	}
}

func TestRateLimiterForget(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := logging.ClockFunc(func() time.Time { return now })
	limiter := NewRateLimiter(clock, 1)

	limiter.Allow("agent")
	if limiter.Allow("agent") {
		t.Fatalf("expected budget exhausted")
	}
	limiter.Forget("agent")
	if !limiter.Allow("agent") {
		t.Fatalf("forgotten agent should start a fresh window")
	}
}
