package http

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	r := newRateLimiter(2)
	r.now = func() time.Time { return now }

	if !r.allow() || !r.allow() {
		t.Fatalf("first two requests must pass")
	}
	if r.allow() {
		t.Fatalf("third request in the window must be rejected")
	}

	now = now.Add(time.Minute)
	if !r.allow() {
		t.Fatalf("request in a new window must pass")
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	r := newRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !r.allow() {
			t.Fatalf("zero limit must allow everything")
		}
	}

	var nilLimiter *rateLimiter
	if !nilLimiter.allow() {
		t.Fatalf("nil limiter must allow")
	}
}
