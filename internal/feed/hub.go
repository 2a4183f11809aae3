// Package feed provides an in-process wake-up signal for notification
// long-polls. A write for a recipient nudges that recipient's waiting pollers
// so they re-query the store immediately instead of sleeping out their poll
// interval. The hub never carries data; the store stays the source of truth.
//
// The hub is process-local. With several replicas a poller on another
// instance still sees the write on its next interval tick.
package feed

import "sync"

// Hub tracks waiting pollers per recipient. The zero value is not usable;
// a nil *Hub is a valid no-op hub.
type Hub struct {
	mu      sync.Mutex
	waiters map[int]map[chan struct{}]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{waiters: make(map[int]map[chan struct{}]struct{})}
}

// Subscribe registers a waiter for userID. The returned channel receives a
// value after each Publish for that user; signals that arrive while one is
// already pending are coalesced. Call cancel exactly once when done waiting.
func (h *Hub) Subscribe(userID int) (wake <-chan struct{}, cancel func()) {
	if h == nil {
		return nil, func() {}
	}
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	set, ok := h.waiters[userID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.waiters[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.waiters[userID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.waiters, userID)
				}
			}
			h.mu.Unlock()
		})
	}
}

// Publish wakes every current waiter of userID without blocking.
func (h *Hub) Publish(userID int) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.waiters[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Waiters returns the number of pollers currently subscribed for userID.
func (h *Hub) Waiters(userID int) int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiters[userID])
}
