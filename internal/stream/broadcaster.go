package stream

import (
	"sync"

	"github.com/manozcodes/mgpt/internal/events"
)

// listenerBuffer is how many events a listener may lag behind before drops.
const listenerBuffer = 64

// Broadcaster fans out lifecycle events to every connected listener.
// There is no replay: a listener only sees events emitted after Subscribe.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives events from the broadcaster.
type Listener struct {
	C    chan events.Event
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan events.Event, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call twice.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Emit delivers ev to all listeners.
// Slow listeners get events dropped rather than blocking the emitter.
func (b *Broadcaster) Emit(ev events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		select {
		case l.C <- ev:
		default:
			// listener too slow, drop to keep the simulator on schedule
		}
	}
}
