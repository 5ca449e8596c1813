package middleware

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRateLimiter_AllowAndDeny(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(2, time.Minute, clock)

	if !rl.Allow("ip") {
		t.Fatalf("expected allow")
	}
	if !rl.Allow("ip") {
		t.Fatalf("expected allow")
	}
	if rl.Allow("ip") {
		t.Fatalf("expected deny")
	}

	clock.Advance(time.Minute + time.Second)
	if !rl.Allow("ip") {
		t.Fatalf("expected allow after window")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, clockwork.NewFakeClock())

	if !rl.Allow("a") {
		t.Fatalf("expected allow for a")
	}
	if !rl.Allow("b") {
		t.Fatalf("expected allow for b")
	}
	if rl.Allow("a") {
		t.Fatalf("expected deny for a")
	}
}
