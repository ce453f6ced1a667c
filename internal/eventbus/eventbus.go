// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package eventbus is a small generic multi-subscriber broadcast bus.
// Publish never blocks: a subscriber that falls behind has events
// dropped rather than stalling the publisher, exactly as the teacher's
// in-memory event bus trades delivery guarantees for publisher
// liveness (internal/events/memory.go in wingedpig/trellis). Both the
// PTY runtime's output/exit events and the daemon's client notification
// fan-out are instances of this bus.
package eventbus

import "sync"

// Bus broadcasts values of type T to any number of subscribers.
type Bus[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan T
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[uint64]chan T)}
}

// Subscribe registers a new subscriber with the given channel buffer
// size and returns the channel plus an unsubscribe function. The
// channel is closed by Unsubscribe, never by Publish.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan T, buffer)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Publish delivers event to every current subscriber. A subscriber
// whose channel is full has the event dropped for it; other
// subscribers are unaffected.
func (b *Bus[T]) Publish(event T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of live subscribers, for tests and
// diagnostics.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close unsubscribes and closes every current subscriber channel.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
