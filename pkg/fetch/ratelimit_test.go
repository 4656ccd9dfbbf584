package fetch

import (
	"testing"
	"time"
)

func newTestRateLimiter() *RateLimiter {
	return NewRateLimiter(100*time.Millisecond, testLogger())
}

func TestApplyDelay_SleepsForExpectedDuration(t *testing.T) {
	rl := newTestRateLimiter()
	host := "example.com"

	// Simulate a recent request so delay is needed
	rl.UpdateLastRequestTime(host)

	start := time.Now()
	rl.ApplyDelay(host, 100*time.Millisecond)
	elapsed := time.Since(start)

	// Allow for jitter (+/- 10%) and timer imprecision
	if elapsed < 50*time.Millisecond {
		t.Errorf("ApplyDelay returned too quickly: %v, expected ~100ms", elapsed)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("ApplyDelay took too long: %v, expected ~100ms", elapsed)
	}
}

func TestApplyDelay_NoDelayOnFirstRequest(t *testing.T) {
	rl := newTestRateLimiter()
	host := "fresh-host.com"

	start := time.Now()
	rl.ApplyDelay(host, 5*time.Second)
	elapsed := time.Since(start)

	if elapsed > 10*time.Millisecond {
		t.Errorf("ApplyDelay on first request took %v, expected instant return", elapsed)
	}
}

func TestApplyDelay_NoDelayAfterEnoughElapsed(t *testing.T) {
	rl := newTestRateLimiter()
	host := "example.com"

	rl.UpdateLastRequestTime(host)
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	rl.ApplyDelay(host, 20*time.Millisecond)
	elapsed := time.Since(start)

	if elapsed > 10*time.Millisecond {
		t.Errorf("ApplyDelay after the delay already elapsed took %v, expected instant return", elapsed)
	}
}

func TestApplyDelay_FallsBackToDefaultDelay(t *testing.T) {
	rl := newTestRateLimiter() // default of 100ms
	host := "example.com"

	rl.UpdateLastRequestTime(host)

	start := time.Now()
	rl.ApplyDelay(host, 0)
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("ApplyDelay with zero minDelay returned in %v, expected the 100ms default to apply", elapsed)
	}
}
