// Package observable provides the reactive value container controllers use
// for their UI-facing state. A Value holds the current state, applies
// read-modify-write transforms atomically, and fans updates out to
// subscribers with latest-value-wins delivery.
package observable

import "sync"

type Value[T any] struct {
	mu      sync.Mutex
	current T
	subs    map[int]chan T
	nextID  int
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[int]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the current value and notifies subscribers.
func (v *Value[T]) Set(val T) {
	v.Update(func(T) T { return val })
}

// Update applies fn to the current value under the lock, so two intents
// issued back-to-back never interleave partial updates. It returns the
// new value.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = fn(v.current)
	for _, ch := range v.subs {
		sendLatest(ch, v.current)
	}
	return v.current
}

// Subscribe returns a channel that immediately carries the current value
// and then every subsequent update, plus a cancel func that closes the
// channel. Slow consumers only ever miss intermediate values, never the
// latest one.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++

	ch := make(chan T, 1)
	ch <- v.current
	v.subs[id] = ch

	cancel := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// sendLatest never blocks: if the subscriber has not drained the previous
// value, it is discarded in favor of the new one.
func sendLatest[T any](ch chan T, val T) {
	for {
		select {
		case ch <- val:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
