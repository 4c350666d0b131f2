package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rovergate/pkg/protocol"
)

func TestCommandCellDeduplicatesBySeq(t *testing.T) {
	start := time.Unix(0, 0)
	c := newCommandCell(start)

	applied := 0
	apply := func(protocol.Actions) { applied++ }

	a := protocol.Actions{Seq: 7, Motors: protocol.Motors{M1: 100}}
	assert.True(t, c.acceptAndApply(a, start.Add(10*time.Millisecond), apply))
	assert.False(t, c.acceptAndApply(a, start.Add(20*time.Millisecond), apply))
	assert.False(t, c.acceptAndApply(a, start.Add(30*time.Millisecond), apply))
	assert.Equal(t, 1, applied)

	// Any change of sequence counts as a new command, including going
	// backwards after a sender restart.
	a.Seq = 3
	assert.True(t, c.acceptAndApply(a, start.Add(40*time.Millisecond), apply))
	assert.Equal(t, 2, applied)

	got, at := c.snapshot()
	assert.Equal(t, uint32(3), got.Seq)
	assert.Equal(t, start.Add(40*time.Millisecond), at)
}

func TestCommandCellNeutralOnStale(t *testing.T) {
	start := time.Unix(0, 0)
	c := newCommandCell(start)
	timeout := 500 * time.Millisecond

	var neutrals []protocol.Actions
	apply := func(a protocol.Actions) { neutrals = append(neutrals, a) }

	// Fresh enough: nothing happens at or below the threshold.
	fired, age := c.neutralIfStale(start.Add(timeout), timeout, apply)
	assert.False(t, fired)
	assert.Equal(t, timeout, age)

	// Past the threshold the neutral command goes out once.
	fired, _ = c.neutralIfStale(start.Add(600*time.Millisecond), timeout, apply)
	require.True(t, fired)
	require.Len(t, neutrals, 1)
	assert.Equal(t, protocol.Neutral(), neutrals[0])

	// Still stale, but inside the throttle window: no repeat.
	fired, _ = c.neutralIfStale(start.Add(700*time.Millisecond), timeout, apply)
	assert.False(t, fired)

	// A full timeout later it re-applies.
	fired, _ = c.neutralIfStale(start.Add(1200*time.Millisecond), timeout, apply)
	assert.True(t, fired)
	assert.Len(t, neutrals, 2)
}

func TestCommandCellFreshCommandResetsStaleness(t *testing.T) {
	start := time.Unix(0, 0)
	c := newCommandCell(start)
	timeout := 200 * time.Millisecond

	c.acceptAndApply(protocol.Actions{Seq: 1}, start.Add(time.Second), func(protocol.Actions) {})

	fired, age := c.neutralIfStale(start.Add(1100*time.Millisecond), timeout, func(protocol.Actions) {
		t.Fatal("neutral applied for a fresh command")
	})
	assert.False(t, fired)
	assert.Equal(t, 100*time.Millisecond, age)
}

func TestCommandCellDisabledTimeout(t *testing.T) {
	start := time.Unix(0, 0)
	c := newCommandCell(start)

	fired, _ := c.neutralIfStale(start.Add(time.Hour), 0, func(protocol.Actions) {
		t.Fatal("neutral applied with watchdog disabled")
	})
	assert.False(t, fired)
}
