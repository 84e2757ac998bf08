// Package stream fans freshly written audit entries out to live subscribers of one tenant.
package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"orgguard.dev/internal/audit"
)

const bufferSize = 16

type subscriber struct {
	platformID string
	orgID      string
	ch         chan audit.Entry
}

// Hub is an audit.Sink that never blocks the writer: slow subscribers miss entries.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	dropped atomic.Uint64
}

func New() *Hub {
	return &Hub{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for entries of the given tenant.
// The channel is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, platformID, orgID string) <-chan audit.Entry {
	ch := make(chan audit.Entry, bufferSize)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscriber{platformID: platformID, orgID: orgID, ch: ch}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

// AppendAudit publishes e to the subscribers of its tenant.
func (h *Hub) AppendAudit(_ context.Context, e audit.Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.platformID != e.PlatformID || s.orgID != e.OrgID {
			continue
		}
		select {
		case s.ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many entries were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
