package fetch

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter spaces out requests per host so media downloads stay polite.
type RateLimiter struct {
	lastRequest  map[string]time.Time
	mu           sync.Mutex
	defaultDelay time.Duration
	log          *logrus.Logger
}

// NewRateLimiter creates a RateLimiter with the given fallback delay.
func NewRateLimiter(defaultDelay time.Duration, log *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		lastRequest:  make(map[string]time.Time),
		defaultDelay: defaultDelay,
		log:          log,
	}
}

// ApplyDelay sleeps if the time since the last request to the host is less
// than minDelay. Jitter of +/-10% desynchronizes concurrent workers.
func (rl *RateLimiter) ApplyDelay(host string, minDelay time.Duration) {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return
	}

	rl.mu.Lock()
	last, seen := rl.lastRequest[host]
	rl.mu.Unlock() // unlock before any sleep

	if !seen {
		return
	}
	elapsed := time.Since(last)
	if elapsed >= minDelay {
		return
	}
	sleep := minDelay - elapsed

	var jitter time.Duration
	if jitterRange := int64(sleep) / 5; jitterRange > 0 {
		jitter = time.Duration(rand.Int63n(jitterRange)) - (sleep / 10)
	}
	sleep += jitter
	if sleep <= 0 {
		return
	}

	rl.log.WithFields(logrus.Fields{
		"host": host, "sleep": sleep, "required_delay": minDelay, "elapsed": elapsed,
	}).Debug("Rate limit applying sleep")
	time.Sleep(sleep)
}

// UpdateLastRequestTime records now as the last attempt time for the host.
// Call after each HTTP request attempt, successful or not.
func (rl *RateLimiter) UpdateLastRequestTime(host string) {
	rl.mu.Lock()
	rl.lastRequest[host] = time.Now()
	rl.mu.Unlock()
}
