package satchel

import "sync"

// State is a stream with a current value. New subscribers immediately
// receive the latest value, then every subsequent update. Subscribers are
// conflating: a slow consumer sees the newest value, not the full history.
type State[T any] struct {
	mu     sync.Mutex
	value  T
	stream *Stream[T]
}

// NewState creates a state holding an initial value.
func NewState[T any](initial T) *State[T] {
	return &State[T]{
		value:  initial,
		stream: newStream[T](8, true),
	}
}

// Get returns the current value.
func (s *State[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set publishes a new value. The store and the emit happen under one lock
// acquisition, so concurrent Sets emit in store order and the last value a
// subscriber holds is the last value stored.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.stream.Emit(v)
}

// Update applies fn to the current value and publishes the result. The
// read-modify-write is atomic with respect to other Set/Update calls.
func (s *State[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := fn(s.value)
	s.value = v
	s.stream.Emit(v)
	return v
}

// Subscribe attaches a subscription that first receives the current value.
func (s *State[T]) Subscribe() *Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.stream.Subscribe()
	sub.push(s.value)
	return sub
}

// Close completes the state's stream. Get continues to return the last
// value; subscriptions drain and close.
func (s *State[T]) Close() {
	s.stream.Done()
}

// Fail terminates the state's stream with an error.
func (s *State[T]) Fail(err error) {
	s.stream.Fail(err)
}

// Terminated reports whether the state has been closed or failed.
func (s *State[T]) Terminated() bool {
	return s.stream.Terminated()
}

// MapState derives a state whose value is fn applied to the source value,
// kept current as the source changes.
func MapState[T, U any](src *State[T], fn func(T) U) *State[U] {
	src.mu.Lock()
	out := NewState(fn(src.value))
	sub := src.stream.Subscribe()
	src.mu.Unlock()

	go func() {
		for v := range sub.C() {
			out.Set(fn(v))
		}
		if err := sub.Err(); err != nil {
			out.Fail(err)
		} else {
			out.Close()
		}
	}()
	return out
}
