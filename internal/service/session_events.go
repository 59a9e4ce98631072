package service

import (
	"sync"

	"nexttale/shared/models"
)

const sessionEventBuffer = 32

// eventHub fans session events out to listeners. Slow listeners lose events.
type eventHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan models.SessionEvent
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan models.SessionEvent)}
}

func (h *eventHub) subscribe() (<-chan models.SessionEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.SessionEvent, sessionEventBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

// publish reports how many listeners received the event.
func (h *eventHub) publish(ev models.SessionEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, ch := range h.subs {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
