package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rovergate/pkg/protocol"
)

func TestSubscribeReceivesPublished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New()
	go h.Run(ctx)

	sub := h.Subscribe()
	h.Publish(Sample{State: protocol.State{Seq: 9}})

	select {
	case s := <-sub:
		assert.Equal(t, uint32(9), s.State.Seq)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sample")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(WithClientBuffer(1))
	go h.Run(ctx)

	sub := h.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			h.Publish(Sample{State: protocol.State{Seq: uint32(i)}})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// The one buffered sample is still deliverable.
	require.NotNil(t, sub)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New()
	go h.Run(ctx)

	sub := h.Subscribe()
	h.Unsubscribe(sub)

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed on unsubscribe")
	}
}
