package gateway

import (
	"sync"
	"time"

	"rovergate/pkg/protocol"
)

// commandCell is the shared last-command register. Every read and write,
// including the board apply itself, happens under the cell lock so the
// watchdog's read-check-apply is atomic against the receive loop.
type commandCell struct {
	mu          sync.Mutex
	last        protocol.Actions
	lastSeq     uint32
	haveSeq     bool
	lastTime    time.Time
	lastNeutral time.Time
}

func newCommandCell(now time.Time) *commandCell {
	// Staleness counts from gateway start until the first command lands.
	return &commandCell{lastTime: now}
}

// acceptAndApply applies a freshly decoded command unless its sequence
// matches the last applied one. Sequence numbers are compared, not
// ordered: any change triggers an apply.
func (c *commandCell) acceptAndApply(a protocol.Actions, now time.Time, apply func(protocol.Actions)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.haveSeq && a.Seq == c.lastSeq {
		return false
	}
	c.last = a
	c.lastSeq = a.Seq
	c.haveSeq = true
	c.lastTime = now
	apply(a)
	return true
}

// neutralIfStale applies the neutral command when the last accepted
// command is older than timeout. Re-application is throttled to once per
// timeout window so a dead link does not hammer the board at watchdog
// rate.
func (c *commandCell) neutralIfStale(now time.Time, timeout time.Duration, apply func(protocol.Actions)) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	age := now.Sub(c.lastTime)
	if timeout <= 0 || age <= timeout {
		return false, age
	}
	if now.Sub(c.lastNeutral) < timeout {
		return false, age
	}
	c.lastNeutral = now
	apply(protocol.Neutral())
	return true, age
}

// snapshot returns the last accepted command and its arrival time.
func (c *commandCell) snapshot() (protocol.Actions, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.lastTime
}
