// Package observable holds values that notify watchers on change.
package observable

import "sync"

// Value is a concurrency-safe value with change notification.
// Watchers receive the latest value; a slow watcher only misses
// intermediate values, it never blocks Set.
type Value[T comparable] struct {
	mu       sync.RWMutex
	current  T
	watchers map[int]chan T
	nextID   int
}

// New creates a Value holding initial
func New[T comparable](initial T) *Value[T] {
	return &Value[T]{
		current:  initial,
		watchers: make(map[int]chan T),
	}
}

// Get returns the current value
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set stores next and notifies watchers when it differs from the current value.
// It reports whether the value changed.
func (v *Value[T]) Set(next T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current == next {
		return false
	}
	v.current = next
	for _, ch := range v.watchers {
		offer(ch, next)
	}
	return true
}

// Watch returns a channel that first yields the current value and then every change.
// The cancel func closes the channel.
func (v *Value[T]) Watch() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 1)
	ch <- v.current
	id := v.nextID
	v.nextID++
	v.watchers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.watchers, id)
			close(ch)
		})
	}
	return ch, cancel
}

// offer replaces any undelivered value with next
func offer[T any](ch chan T, next T) {
	select {
	case ch <- next:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- next:
	default:
	}
}
