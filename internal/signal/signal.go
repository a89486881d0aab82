// Package signal provides a small synchronous observer owned by the object
// that emits it.
package signal

type listener[T any] struct {
	id int
	fn func(T)
}

// Signal delivers values of type T to its listeners in registration order.
// The zero value is ready to use. It is not safe for concurrent use; a
// signal lives on the goroutine of its owner.
type Signal[T any] struct {
	next      int
	listeners []listener[T]
}

// On registers fn and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (s *Signal[T]) On(fn func(T)) (off func()) {
	s.next++
	id := s.next
	s.listeners = append(s.listeners, listener[T]{id: id, fn: fn})
	return func() { s.remove(id) }
}

// Once registers fn for a single delivery.
func (s *Signal[T]) Once(fn func(T)) (off func()) {
	var stop func()
	stop = s.On(func(v T) {
		stop()
		fn(v)
	})
	return stop
}

// Emit calls every listener registered at the time of the call. Listeners
// may subscribe or unsubscribe while being called.
func (s *Signal[T]) Emit(v T) {
	if len(s.listeners) == 0 {
		return
	}
	current := make([]listener[T], len(s.listeners))
	copy(current, s.listeners)
	for _, l := range current {
		if s.has(l.id) {
			l.fn(v)
		}
	}
}

// Clear drops all listeners.
func (s *Signal[T]) Clear() {
	s.listeners = nil
}

// Len returns the number of registered listeners.
func (s *Signal[T]) Len() int {
	return len(s.listeners)
}

func (s *Signal[T]) has(id int) bool {
	for _, l := range s.listeners {
		if l.id == id {
			return true
		}
	}
	return false
}

func (s *Signal[T]) remove(id int) {
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}
