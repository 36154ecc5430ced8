package provider

import (
	"context"
	"sync"
	"time"
)

// Reservoir grants a fixed quota of external calls per time window, refilled
// in full at each window boundary, combined with a concurrency gate. Callers
// that exhaust the quota block until the next refill instead of failing.
type Reservoir struct {
	mu          sync.Mutex
	capacity    int
	window      time.Duration
	remaining   int
	windowStart time.Time

	sem chan struct{}

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReservoir(maxConcurrent, capacity int, window time.Duration) *Reservoir {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	r := &Reservoir{
		capacity:  capacity,
		window:    window,
		remaining: capacity,
		sem:       make(chan struct{}, maxConcurrent),
		now:       time.Now,
		sleep:     sleepCtx,
	}
	r.windowStart = r.now()
	return r
}

// Acquire blocks until a concurrency slot and a reservoir token are both
// available, or ctx is done. Each successful Acquire must be paired with
// Release; the reservoir token itself is consumed, not returned.
func (r *Reservoir) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		r.mu.Lock()
		r.refillLocked()
		if r.remaining > 0 {
			r.remaining--
			r.mu.Unlock()
			return nil
		}
		wait := r.windowStart.Add(r.window).Sub(r.now())
		r.mu.Unlock()

		if err := r.sleep(ctx, wait); err != nil {
			<-r.sem
			return err
		}
	}
}

// Release frees the concurrency slot taken by Acquire.
func (r *Reservoir) Release() {
	<-r.sem
}

// refillLocked advances the window and restores the quota when one or more
// boundaries have passed. Caller holds the mutex.
func (r *Reservoir) refillLocked() {
	now := r.now()
	elapsed := now.Sub(r.windowStart)
	if elapsed < r.window {
		return
	}
	windows := elapsed / r.window
	r.windowStart = r.windowStart.Add(windows * r.window)
	r.remaining = r.capacity
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
