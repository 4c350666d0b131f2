// Package hub fans published telemetry samples out to live consumers
// (websocket bridge, MQTT mirror). Subscribers that fall behind lose
// samples; the publisher never blocks on them.
package hub

import (
	"context"
	"time"

	"rovergate/pkg/protocol"
)

// Sample is one published telemetry snapshot with its capture times.
type Sample struct {
	Wall  time.Time
	State protocol.State
}

type Hub struct {
	broadcast  chan Sample
	register   chan chan Sample
	unregister chan chan Sample
	clients    map[chan Sample]struct{}
	clientBuf  int
}

type Option func(*Hub)

func WithBroadcastBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan Sample, size)
		}
	}
}

func WithClientBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.clientBuf = size
		}
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{
		broadcast:  make(chan Sample, 256),
		register:   make(chan chan Sample),
		unregister: make(chan chan Sample),
		clients:    make(map[chan Sample]struct{}),
		clientBuf:  100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for ch := range h.clients {
				close(ch)
			}
			return
		case ch := <-h.register:
			h.clients[ch] = struct{}{}
		case ch := <-h.unregister:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case sample := <-h.broadcast:
			for ch := range h.clients {
				select {
				case ch <- sample:
				default:
				}
			}
		}
	}
}

func (h *Hub) Subscribe() chan Sample {
	ch := make(chan Sample, h.clientBuf)
	h.register <- ch
	return ch
}

func (h *Hub) Unsubscribe(ch chan Sample) {
	h.unregister <- ch
}

// Publish enqueues a sample for broadcast. It drops when the broadcast
// buffer is full rather than stalling the publish loop.
func (h *Hub) Publish(sample Sample) {
	select {
	case h.broadcast <- sample:
	default:
	}
}
