package security

import (
	"sync"

	audit "verigate/pkg/platform/audit"
)

// backlog is a bounded FIFO of security events awaiting the store. Overflow
// evicts from the front, so the newest events always survive.
type backlog struct {
	mu      sync.Mutex
	events  []audit.Event
	limit   int
	evicted int64
}

func newBacklog(limit int) *backlog {
	if limit <= 0 {
		limit = defaultCapacity
	}
	return &backlog{limit: limit}
}

func (b *backlog) push(event audit.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	b.trim()
}

// requeue puts events that failed to flush back at the front, ahead of
// anything emitted since, so the store sees them in emit order.
func (b *backlog) requeue(events []audit.Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := make([]audit.Event, 0, len(events)+len(b.events))
	merged = append(merged, events...)
	b.events = append(merged, b.events...)
	b.trim()
}

// take removes up to n events from the front.
func (b *backlog) take(n int) []audit.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	n = min(n, len(b.events))
	if n == 0 {
		return nil
	}
	batch := make([]audit.Event, n)
	copy(batch, b.events)
	b.events = b.events[n:]
	if len(b.events) == 0 {
		b.events = nil
	}
	return batch
}

func (b *backlog) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *backlog) dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}

// trim must be called with mu held.
func (b *backlog) trim() {
	if over := len(b.events) - b.limit; over > 0 {
		b.events = b.events[over:]
		b.evicted += int64(over)
	}
}
