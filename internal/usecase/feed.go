package usecase

import "sync"

// Feed publishes values to any number of subscribers and replays the latest
// value to late subscribers. Delivery is synchronous and ordered, so a
// subscriber has seen a value before Publish returns. Subscribers must not
// block or publish to the same feed from inside the callback.
type Feed[T any] struct {
	mu      sync.Mutex
	value   T
	subs    map[int]func(T)
	nextID  int
	closed  bool
	deliver sync.Mutex
}

func NewFeed[T any](initial T) *Feed[T] {
	return &Feed[T]{value: initial, subs: make(map[int]func(T))}
}

// Publish stores value and delivers it. Publishing to a closed feed is a no-op.
func (f *Feed[T]) Publish(value T) {
	f.deliver.Lock()
	defer f.deliver.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.value = value
	subs := make([]func(T), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Subscribe registers fn and immediately replays the current value to it.
func (f *Feed[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	f.deliver.Lock()
	defer f.deliver.Unlock()

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	current := f.value
	closed := f.closed
	f.mu.Unlock()

	if !closed {
		fn(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Value returns the latest published value.
func (f *Feed[T]) Value() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Close drops all subscribers and turns later publishes into no-ops.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.subs = make(map[int]func(T))
}
