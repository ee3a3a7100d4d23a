package pubsub

import "sync"

// Bus is an in-process fan-out of messages of type T. Publish delivers
// synchronously, in subscription order, so subscribers observe messages in
// the order they were published.
type Bus[T any] struct {
	mu       sync.RWMutex
	nextId   uint64
	handlers map[uint64]func(T)
	order    []uint64
}

func New[T any]() *Bus[T] {
	return &Bus[T]{handlers: make(map[uint64]func(T))}
}

// Subscribe registers handler and returns a func that removes it.
func (b *Bus[T]) Subscribe(handler func(T)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextId
	b.nextId++
	b.handlers[id] = handler
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *Bus[T]) Publish(msg T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}
