// Package goalsync broadcasts nutrition-goal updates to named subscribers
// with latest-value-wins delivery. It replaces ambient global state with an
// explicit channel: every consumer subscribes under its own id, and a slow
// consumer only ever misses intermediate values, never the newest one.
package goalsync

import (
	"errors"
	"sync"
)

var (
	ErrBusClosed        = errors.New("goalsync: bus is closed")
	ErrSubscriberExists = errors.New("goalsync: subscriber id already registered")
)

// Bus fans out values to subscribers. Publish never blocks: each subscriber
// holds a one-slot mailbox and a new value replaces an unconsumed one.
type Bus[V any] struct {
	mu          sync.RWMutex
	subscribers map[string]*Receiver[V]
	closed      bool
}

// New creates an empty bus.
func New[V any]() *Bus[V] {
	return &Bus[V]{subscribers: make(map[string]*Receiver[V])}
}

// Subscribe registers a named subscriber and returns its receiver.
// Ids must be unique; a second Subscribe with the same id fails.
func (b *Bus[V]) Subscribe(id string) (*Receiver[V], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	r := &Receiver[V]{ch: make(chan V, 1)}
	b.subscribers[id] = r
	return r, nil
}

// Unsubscribe removes a subscriber and closes its mailbox.
func (b *Bus[V]) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(r.ch)
	}
}

// Publish delivers v to every subscriber, replacing any value a subscriber
// has not consumed yet.
func (b *Bus[V]) Publish(v V) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, r := range b.subscribers {
		r.replace(v)
	}
}

// Close shuts the bus down and closes all subscriber mailboxes.
func (b *Bus[V]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, r := range b.subscribers {
		delete(b.subscribers, id)
		close(r.ch)
	}
}

// Receiver is a subscriber's mailbox. C yields published values; after the
// bus closes or the subscriber is removed, C is closed.
type Receiver[V any] struct {
	mu sync.Mutex
	ch chan V
}

// C returns the receive channel.
func (r *Receiver[V]) C() <-chan V {
	return r.ch
}

// replace swaps out an unconsumed value so the mailbox always holds the
// newest one. The lock prevents two publishers from both draining and then
// both sending, which would block one of them.
func (r *Receiver[V]) replace(v V) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case r.ch <- v:
	default:
		select {
		case <-r.ch:
		default:
		}
		select {
		case r.ch <- v:
		default:
		}
	}
}
