package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// hostSlot is one host's concurrency gate. inFlight counts permits that are
// held or waited on; idleSince is zero until the first release.
type hostSlot struct {
	sem       *semaphore.Weighted
	inFlight  int64
	idleSince time.Time
}

// HostSemaphorePool caps concurrent requests per host. One pool is shared by
// the page fetcher and the media downloader so the per-host limit holds
// across both.
type HostSemaphorePool struct {
	mu    sync.Mutex
	slots map[string]*hostSlot
	limit int64
	log   *logrus.Entry
}

// NewHostSemaphorePool creates a pool with the given per-host concurrency limit.
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostSemaphorePool{
		slots: make(map[string]*hostSlot),
		limit: limit,
		log:   log,
	}
}

// slotFor returns the host's slot, creating it lazily. Caller holds p.mu.
func (p *HostSemaphorePool) slotFor(host string) *hostSlot {
	slot, ok := p.slots[host]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(p.limit)}
		p.slots[host] = slot
		p.log.WithFields(logrus.Fields{"host": host, "limit": p.limit}).Debug("Tracking new host")
	}
	return slot
}

// Acquire blocks until a permit for host is available or ctx is cancelled.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) error {
	p.mu.Lock()
	slot := p.slotFor(host)
	slot.inFlight++
	p.mu.Unlock()

	err := slot.sem.Acquire(ctx, 1)
	if err != nil {
		p.mu.Lock()
		slot.inFlight--
		p.mu.Unlock()
	}
	return err
}

// Release returns one permit for host.
func (p *HostSemaphorePool) Release(host string) {
	p.mu.Lock()
	slot, ok := p.slots[host]
	if !ok {
		p.mu.Unlock()
		p.log.Errorf("hostsemaphore: Release for untracked host %s", host)
		return
	}
	slot.inFlight--
	slot.idleSince = time.Now()
	p.mu.Unlock()

	slot.sem.Release(1)
}

// RunEviction drops idle host slots on a timer so a long run over many hosts
// does not grow the map without bound. Run in a goroutine.
func (p *HostSemaphorePool) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictIdle(interval)
		case <-ctx.Done():
			p.log.Debugf("Stopping host semaphore eviction: %v", ctx.Err())
			return
		}
	}
}

// evictIdle removes slots with no in-flight permits that last released at
// least maxIdle ago. Slots that were never released are kept.
func (p *HostSemaphorePool) evictIdle(maxIdle time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	before := len(p.slots)
	for host, slot := range p.slots {
		if slot.inFlight == 0 && !slot.idleSince.IsZero() && !slot.idleSince.After(cutoff) {
			delete(p.slots, host)
		}
	}
	if dropped := before - len(p.slots); dropped > 0 {
		p.log.Debugf("Evicted %d idle host slots, %d remain", dropped, len(p.slots))
	}
}

// Len returns the number of tracked hosts.
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
