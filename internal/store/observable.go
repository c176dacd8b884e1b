// Package store holds client-side state: the generation list and the
// now-playing track. Stores are safe for concurrent use and notify
// subscribers after every change, outside their lock.
package store

import "sync"

// observable fans a value out to subscribers.
type observable[T any] struct {
	mu   sync.Mutex
	subs map[int]func(T)
	next int
}

// subscribe registers fn and returns a function that removes it.
func (o *observable[T]) subscribe(fn func(T)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]func(T))
	}
	id := o.next
	o.next++
	o.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

func (o *observable[T]) notify(v T) {
	o.mu.Lock()
	fns := make([]func(T), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
