package chromedp_fetcher

import (
	"context"
	"sync"
	"time"
)

const idlePollInterval = 50 * time.Millisecond

// inflightTracker counts outstanding network requests of the current
// navigation and remembers since when the count has stayed at or below
// the allowed maximum.
type inflightTracker struct {
	mu          sync.Mutex
	pending     map[string]struct{}
	maxInflight int
	idleSince   time.Time // zero while more than maxInflight requests are pending
	now         func() time.Time
}

func newInflightTracker() *inflightTracker {
	return &inflightTracker{
		pending: make(map[string]struct{}),
		now:     time.Now,
	}
}

// Reset forgets all pending requests before a new navigation.
func (t *inflightTracker) Reset(maxInflight int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[string]struct{})
	t.maxInflight = maxInflight
	t.idleSince = t.now()
}

// Begin records a request. Redirects reuse the request id and are counted once.
func (t *inflightTracker) Begin(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; ok {
		return
	}
	t.pending[id] = struct{}{}
	if len(t.pending) > t.maxInflight {
		t.idleSince = time.Time{}
	}
}

// Finish records a request that completed or failed.
func (t *inflightTracker) Finish(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; !ok {
		return
	}
	delete(t.pending, id)
	if len(t.pending) <= t.maxInflight && t.idleSince.IsZero() {
		t.idleSince = t.now()
	}
}

// Inflight returns the number of pending requests.
func (t *inflightTracker) Inflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// settled reports whether the network has been quiet for at least quiet.
func (t *inflightTracker) settled(quiet time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.idleSince.IsZero() && t.now().Sub(t.idleSince) >= quiet
}

// WaitIdle blocks until the network has been quiet for quiet or ctx ends.
func (t *inflightTracker) WaitIdle(ctx context.Context, quiet time.Duration) error {
	if t.settled(quiet) {
		return nil
	}
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.settled(quiet) {
				return nil
			}
		}
	}
}
