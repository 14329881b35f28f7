package satchel

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Subscription delivers values published to a Stream or State.
// Values arrive on C in publish order. After the stream completes or fails
// the channel is closed and Err reports the terminal error, if any.
type Subscription[T any] struct {
	ID string

	ch       chan T
	conflate bool

	mu      sync.Mutex
	closed  bool
	err     error
	detach  func(id string)
	dropped *int64
}

// C returns the channel on which values are delivered.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Err returns the terminal error of the stream. It is meaningful only after
// C has been closed; nil means clean completion.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscription from its stream.
func (s *Subscription[T]) Close() {
	s.finish(nil)
	if s.detach != nil {
		s.detach(s.ID)
	}
}

// push delivers a value without ever blocking the publisher. Conflating
// subscriptions evict the oldest buffered value to make room; others count
// the value as dropped.
func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- v:
		return
	default:
	}
	if s.conflate {
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- v:
			return
		default:
		}
	}
	if s.dropped != nil {
		atomic.AddInt64(s.dropped, 1)
	}
}

func (s *Subscription[T]) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}

// Stream is a minimal publish-subscribe primitive. Subscribers receive
// published values over buffered channels; the stream can be completed with
// Done or failed with Fail, after which Emit is a no-op and new subscribers
// observe the terminal result immediately.
type Stream[T any] struct {
	mu       sync.Mutex
	subs     map[string]*Subscription[T]
	done     bool
	err      error
	buffer   int
	conflate bool
	dropped  int64
}

// NewStream creates a stream with the default per-subscription buffer.
func NewStream[T any]() *Stream[T] {
	return newStream[T](64, false)
}

func newStream[T any](buffer int, conflate bool) *Stream[T] {
	if buffer <= 0 {
		buffer = 64
	}
	return &Stream[T]{
		subs:     make(map[string]*Subscription[T]),
		buffer:   buffer,
		conflate: conflate,
	}
}

// Subscribe attaches a new subscription. Subscribing to a terminated stream
// returns a subscription whose channel is already closed.
func (s *Stream[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		ID:       "sub-" + uuid.NewString(),
		ch:       make(chan T, s.buffer),
		conflate: s.conflate,
		dropped:  &s.dropped,
	}
	sub.detach = func(id string) {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		sub.finish(err)
		return sub
	}
	s.subs[sub.ID] = sub
	s.mu.Unlock()
	return sub
}

// Emit publishes a value to all subscribers. Delivery never blocks the
// caller; see Subscription.push for the overflow policy.
func (s *Stream[T]) Emit(v T) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	subs := make([]*Subscription[T], 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.push(v)
	}
}

// Done completes the stream. Subscriber channels drain and close.
func (s *Stream[T]) Done() {
	s.terminate(nil)
}

// Fail terminates the stream with an error, which subscribers observe via
// Subscription.Err after their channel closes.
func (s *Stream[T]) Fail(err error) {
	s.terminate(err)
}

func (s *Stream[T]) terminate(err error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.err = err
	subs := s.subs
	s.subs = make(map[string]*Subscription[T])
	s.mu.Unlock()

	for _, sub := range subs {
		sub.finish(err)
	}
}

// Terminated reports whether the stream has completed or failed.
func (s *Stream[T]) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// SubscriberCount returns the number of attached subscriptions.
func (s *Stream[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dropped returns the number of values dropped due to full subscriber
// buffers.
func (s *Stream[T]) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// Map derives a stream whose values are fn applied to the source values.
// Completion and failure propagate from the source.
func Map[T, U any](src *Stream[T], fn func(T) U) *Stream[U] {
	out := newStream[U](src.buffer, src.conflate)
	sub := src.Subscribe()
	go func() {
		for v := range sub.C() {
			out.Emit(fn(v))
		}
		out.terminate(sub.Err())
	}()
	return out
}

// Where derives a stream carrying only the source values for which pred
// returns true. Completion and failure propagate from the source.
func Where[T any](src *Stream[T], pred func(T) bool) *Stream[T] {
	out := newStream[T](src.buffer, src.conflate)
	sub := src.Subscribe()
	go func() {
		for v := range sub.C() {
			if pred(v) {
				out.Emit(v)
			}
		}
		out.terminate(sub.Err())
	}()
	return out
}
