// Package observer provides a value subject that broadcasts changes to synchronous observers.
package observer

import (
	"sync"

	"go.uber.org/atomic"
)

// ValueSubject holds a value and notifies observers when it is set.
//
// Observers are called on the goroutine that sets the value, in subscription order,
// after the subject's lock is released, so an observer may read the subject.
type ValueSubject[T comparable] struct {
	mu        sync.Mutex
	value     T
	observers []observerEntry[T]

	nextID atomic.Uint64
}

type observerEntry[T comparable] struct {
	id uint64
	fn func(T)
}

// NewValueSubject returns a subject holding value.
func NewValueSubject[T comparable](value T) *ValueSubject[T] {
	return &ValueSubject[T]{value: value}
}

// Get returns the current value.
func (s *ValueSubject[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// SetIfChanged stores value and notifies observers only when it differs from the current one.
// It reports whether observers were notified.
func (s *ValueSubject[T]) SetIfChanged(value T) bool {
	s.mu.Lock()
	if s.value == value {
		s.mu.Unlock()
		return false
	}
	s.value = value
	fns := s.snapshot()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
	return true
}

// SetAlways stores value and notifies observers even when it did not change.
func (s *ValueSubject[T]) SetAlways(value T) {
	s.mu.Lock()
	s.value = value
	fns := s.snapshot()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}

// Observe registers fn.  It is not called for the current value.
// The returned function unregisters it and may be called more than once.
func (s *ValueSubject[T]) Observe(fn func(T)) (cancel func()) {
	id := s.nextID.Inc()

	s.mu.Lock()
	s.observers = append(s.observers, observerEntry[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered observers.
func (s *ValueSubject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

func (s *ValueSubject[T]) snapshot() []func(T) {
	fns := make([]func(T), len(s.observers))
	for i, o := range s.observers {
		fns[i] = o.fn
	}
	return fns
}
