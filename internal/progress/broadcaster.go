package progress

import "sync"

// Broadcaster distributes progress events to multiple observers.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives published events and a
// cleanup function. The caller must call the returned cleanup when done.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish sends an event to all subscribers.
// Slow observers may miss events (non-blocking, buffered).
func (b *Broadcaster) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- evt:
		default:
			// channel full, skip
		}
	}
}

// Callback adapts the broadcaster to the Func contract.
func (b *Broadcaster) Callback() Func {
	return b.Publish
}
