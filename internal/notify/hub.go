// Package notify is the publish side of the check list: a small fan-out hub
// that the store pushes events into after every mutation.
package notify

import (
	"sync"

	"github.com/idilsaglam/checklist/internal/model"
)

// DefaultBuffer is used when Subscribe is asked for a non-positive buffer.
const DefaultBuffer = 64

// Hub delivers events to every current subscriber. Delivery is best effort:
// Publish never blocks, and a subscriber whose buffer is full misses the
// event. There is no replay for late subscribers.
type Hub struct {
	mu      sync.Mutex
	subs    map[int]chan model.Event
	nextSub int
	dropped uint64
	closed  bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan model.Event)}
}

// Publish fans ev out and returns how many subscribers received it.
func (h *Hub) Publish(ev model.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, ch := range h.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			h.dropped++
		}
	}
	return delivered
}

// Subscribe registers a new listener. The returned cancel func is safe to
// call more than once; it closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan model.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.Event, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return ch, cancel
}

// Subscribers reports the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close ends every subscription. Later Subscribe calls get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	h.closed = true
}
