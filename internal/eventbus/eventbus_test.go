// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := New[string]()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	bus.Publish("hello")

	select {
	case v := <-ch:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsWhenSubscriberBufferFull(t *testing.T) {
	bus := New[int]()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	bus.Publish(1)
	bus.Publish(2) // dropped, buffer full and nobody reading yet

	require.Len(t, ch, 1)
	assert.Equal(t, 1, <-ch)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New[int]()
	ch, unsub := bus.Subscribe(1)
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestOrderPreservedPerSubscriber(t *testing.T) {
	bus := New[int]()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, i, <-ch)
	}
}
