package recorder

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rovergate/pkg/diag"
	"rovergate/pkg/protocol"
)

func TestQueueDropsOnFullWithoutBlocking(t *testing.T) {
	q := NewQueue[protocol.State](3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.True(t, q.TryPut(now, float64(i), protocol.State{Seq: uint32(i)}))
	}

	done := make(chan bool, 1)
	go func() {
		done <- q.TryPut(now, 3, protocol.State{Seq: 3})
	}()

	select {
	case ok := <-done:
		assert.False(t, ok, "enqueue on a full queue must drop")
	case <-time.After(time.Second):
		t.Fatal("TryPut blocked on a full queue")
	}

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(1), q.Drops())
}

func TestQueueIsFIFO(t *testing.T) {
	q := NewQueue[protocol.Actions](8)
	now := time.Now()
	for i := 0; i < 5; i++ {
		q.TryPut(now, 0, protocol.Actions{Seq: uint32(i)})
	}
	for i := 0; i < 5; i++ {
		e, ok := q.TryGet()
		require.True(t, ok)
		assert.Equal(t, uint32(i), e.Data.Seq)
	}
	_, ok := q.TryGet()
	assert.False(t, ok)
}

func findCSV(t *testing.T, dir, prefix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	return matches[0]
}

func TestRecorderWritesRows(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "run", 100, diag.Nop().Logger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	wall := time.Unix(1700000000, 500000000)
	st := protocol.State{Seq: 12, Battery: 11.5}
	st.Ang.Roll = -3.25
	st.Enc.E2 = -42
	r.States.TryPut(wall, 1.5, st)

	a := protocol.Actions{Seq: 3, BeepMs: 100, Flags: 1}
	a.Motors.M1 = -100
	r.Cmds.TryPut(wall, 1.6, a)

	// Let the drain worker pick both up, then stop it.
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}

	stateFile, err := os.Open(findCSV(t, dir, "run_state"))
	require.NoError(t, err)
	defer stateFile.Close()
	rows, err := csv.NewReader(stateFile).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header + one row")
	assert.Equal(t, "t_epoch_s", rows[0][0])
	assert.Equal(t, "12", rows[1][2])
	assert.Equal(t, "1.500000", rows[1][1])
	assert.Equal(t, "-3.250000", rows[1][12])
	assert.Equal(t, "-42", rows[1][16])
	assert.True(t, strings.HasPrefix(rows[1][0], "1700000000.5"))

	cmdFile, err := os.Open(findCSV(t, dir, "run_cmd"))
	require.NoError(t, err)
	defer cmdFile.Close()
	cmdRows, err := csv.NewReader(cmdFile).ReadAll()
	require.NoError(t, err)
	require.Len(t, cmdRows, 2)
	assert.Equal(t, []string{"t_epoch_s", "t_mono_s", "seq", "m1", "m2", "m3", "m4", "beep_ms", "flags"}, cmdRows[0])
	assert.Equal(t, "3", cmdRows[1][2])
	assert.Equal(t, "-100", cmdRows[1][3])
	assert.Equal(t, "100", cmdRows[1][7])
	assert.Equal(t, "1", cmdRows[1][8])
}

func TestRecorderDrainsQueuesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "run", 100, diag.Nop().Logger())

	// Enqueue before the worker starts, then stop immediately: the final
	// drain must still persist the entries.
	now := time.Now()
	for i := 0; i < 10; i++ {
		r.States.TryPut(now, float64(i), protocol.State{Seq: uint32(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)

	f, err := os.Open(findCSV(t, dir, "run_state"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 11)
}
