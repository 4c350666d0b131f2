// Package transport provides the datagram-shaped send/receive contract the
// gateway loops run over, instantiated by UDP sockets or one accepted TCP
// connection.
package transport

import (
	"errors"
	"time"
)

// ErrPeerDisconnected is returned once the remote side has closed the
// stream. It is fatal to the loops bound to that connection.
var ErrPeerDisconnected = errors.New("transport: peer disconnected")

// Conn is the logical packet channel the scheduler loops are written
// against. Both transports expose the same contract so the fixed-rate and
// watchdog logic exists only once.
type Conn interface {
	// Send transmits one packet.
	Send(pkt []byte) error

	// TryReceive waits up to timeout for one inbound packet of exactly
	// size bytes. It returns (nil, nil) when no packet arrived in time.
	// A non-positive timeout polls without waiting.
	TryReceive(timeout time.Duration, size int) ([]byte, error)

	Close() error
}

// minimum deadline used for a non-blocking poll; a deadline already in the
// past would fail before draining an already-buffered datagram.
const pollSlack = time.Millisecond

func effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout < pollSlack {
		return pollSlack
	}
	return timeout
}
