// Package frontier implements the crawl's shared, deduplicated address
// queue: every Address seen during a crawl passes through it exactly once.
package frontier

import (
	"context"
	"sync"
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
)

// Frontier owns the two logical sets a crawl shares across all workers:
// `seen` (every Address ever enqueued) and `pending` (Addresses awaiting a
// worker). Only the Frontier may mutate either set.
type Frontier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	seen    map[string]struct{}
	pending []addr.Address
	closed  bool

	// MinAge, when non-zero, makes OfferAged exclude addresses advertised
	// with a timestamp older than this threshold from `pending`, while still
	// recording them in `seen` for dedup bookkeeping. Offer ignores it.
	MinAge time.Duration
}

// New returns an empty Frontier.
func New() *Frontier {
	f := &Frontier{seen: make(map[string]struct{})}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Offer inserts addr into `seen`, and if it was not already present, into
// `pending` too, returning true. An address already in `seen` is a no-op
// returning false. Offering after Close is also a no-op returning false.
func (f *Frontier) Offer(a addr.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	key := a.Key()
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	f.pending = append(f.pending, a)
	f.cond.Signal()
	return true
}

// OfferAged is Offer's variant for addresses carrying an advertised
// timestamp: the address is always recorded in `seen`, but is only queued
// into `pending` if its age is within MinAge (or MinAge is zero). This
// implements §4.5's "recorded but may be excluded from offer" rule for
// stale addresses during first-phase discovery. Like Offer, it returns true
// whenever the address was not already in `seen`, whether or not it was
// queued.
func (f *Frontier) OfferAged(a addr.Address, advertised time.Time, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	key := a.Key()
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	if f.MinAge > 0 && !advertised.IsZero() && now.Sub(advertised) > f.MinAge {
		return true
	}
	f.pending = append(f.pending, a)
	f.cond.Signal()
	return true
}

// Take blocks until an Address is available, the Frontier is closed, or ctx
// is cancelled. ok is false in the latter two cases.
func (f *Frontier) Take(ctx context.Context) (a addr.Address, ok bool) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		case <-done:
		}
	}()

	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if len(f.pending) > 0 {
			a = f.pending[0]
			f.pending = f.pending[1:]
			return a, true
		}
		if f.closed {
			return addr.Address{}, false
		}
		if ctx.Err() != nil {
			return addr.Address{}, false
		}
		f.cond.Wait()
	}
}

// Close refuses further Offers. Pending items already queued are still
// drained by Take calls; once pending is exhausted, Take returns ok=false.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// SizeSeen returns the number of distinct addresses ever offered.
func (f *Frontier) SizeSeen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// SizePending returns the number of addresses currently queued.
func (f *Frontier) SizePending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
