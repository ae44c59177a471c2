// Package notifier provides ordered multi-subscriber event fan-out for the
// driver's message, progress, and code model change streams.
package notifier

import (
	"sync"
)

// Emitter delivers each published value to every current subscriber, in
// publish order. Subscribers added after a publish do not see past values.
type Emitter[T any] struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]func(T)
	ordered []int
}

// NewEmitter creates an empty Emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn to be called for every subsequent publish. The
// returned cancel function removes the subscription; calling it more than
// once is a no-op.
func (e *Emitter[T]) Subscribe(fn func(T)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.ordered = append(e.ordered, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			for i, sid := range e.ordered {
				if sid == id {
					e.ordered = append(e.ordered[:i], e.ordered[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers v to all current subscribers in subscription order.
// Delivery is synchronous; a subscriber must not block.
func (e *Emitter[T]) Publish(v T) {
	e.mu.Lock()
	fns := make([]func(T), 0, len(e.ordered))
	for _, id := range e.ordered {
		if fn, ok := e.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of active subscribers.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
