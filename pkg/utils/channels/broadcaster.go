package channels

import (
	"context"
	"sync"
)

// Broadcaster holds the latest value of T and fans it out to subscribers.
type Broadcaster[T any] struct {
	lock        *sync.RWMutex
	subscribers map[*Subscriber[T]]struct{}
	value       T
}

func NewBroadcaster[T any](value T) *Broadcaster[T] {
	return &Broadcaster[T]{
		lock:        new(sync.RWMutex),
		subscribers: make(map[*Subscriber[T]]struct{}),
		value:       value,
	}
}

func (b *Broadcaster[T]) Publish(value T) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.value = value
	for s := range b.subscribers {
		select {
		case s.in <- value:
		case <-s.ctx.Done():
		}
	}
}

func (b *Broadcaster[T]) Value() T {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return b.value
}

// Subscriber coalesces published values; Wait always yields the latest one.
type Subscriber[T any] struct {
	ctx    context.Context
	source *Broadcaster[T]
	in     chan T
	out    chan chan T
}

func NewSubscriber[T any](ctx context.Context, source *Broadcaster[T]) *Subscriber[T] {
	source.lock.Lock()
	defer source.lock.Unlock()

	s := &Subscriber[T]{
		ctx:    ctx,
		source: source,
		in:     make(chan T),
		out:    make(chan chan T),
	}
	source.subscribers[s] = struct{}{}

	go s.subscribe(source.value)

	return s
}

func (s *Subscriber[T]) subscribe(value T) {
	defer func() {
		s.source.lock.Lock()
		defer s.source.lock.Unlock()

		delete(s.source.subscribers, s)
	}()

	for {
		var ch chan T
		for ch == nil {
			select {
			case <-s.ctx.Done():
				return
			case next := <-s.in:
				value = next
			case ch = <-s.out:
			}
		}

		select {
		case <-s.ctx.Done():
			return
		case ch <- value:
		}
		close(ch)

		// block until something new is published
		select {
		case <-s.ctx.Done():
			return
		case next := <-s.in:
			value = next
		}
	}
}

// Wait returns a channel that yields the next value to observe. The first
// call yields the value current at subscription time. It returns nil once
// the subscriber's context is done.
func (s *Subscriber[T]) Wait() <-chan T {
	ch := make(chan T, 1)
	select {
	case s.out <- ch:
		return ch
	case <-s.ctx.Done():
		return nil
	}
}
