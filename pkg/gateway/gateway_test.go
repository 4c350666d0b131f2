package gateway

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rovergate/pkg/board"
	"rovergate/pkg/config"
	"rovergate/pkg/diag"
	"rovergate/pkg/protocol"
)

// recordingDriver wraps the simulated board and keeps every applied
// command for assertions.
type recordingDriver struct {
	*board.Mock
	mu      sync.Mutex
	applied []protocol.Actions
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{Mock: board.NewMock()}
}

func (d *recordingDriver) ApplyActions(a protocol.Actions) error {
	d.mu.Lock()
	d.applied = append(d.applied, a)
	d.mu.Unlock()
	return d.Mock.ApplyActions(a)
}

func (d *recordingDriver) history() []protocol.Actions {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]protocol.Actions, len(d.applied))
	copy(out, d.applied)
	return out
}

func freeUDPAddr(t *testing.T) string {
	t.Helper()
	c, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := c.LocalAddr().String()
	require.NoError(t, c.Close())
	return addr
}

func testConfig(t *testing.T, stateAddr string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Transport.Mode = "udp"
	cfg.Transport.StateAddr = stateAddr
	cfg.Transport.CmdAddr = freeUDPAddr(t)
	cfg.Transport.InfoAddr = freeUDPAddr(t)
	cfg.Timing.StateHz = 200.0
	cfg.Timing.CmdTimeoutS = 5.0
	cfg.Recorder.Enable = false
	return cfg
}

func waitRunning(t *testing.T, g *Gateway) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for g.State() != StateRunning {
		if time.Now().After(deadline) {
			t.Fatalf("gateway never reached RUNNING, state=%s", g.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGatewayUDPLoopback(t *testing.T) {
	stateSock, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer stateSock.Close()

	cfg := testConfig(t, stateSock.LocalAddr().String())
	driver := newRecordingDriver()
	g := New(cfg, driver, diag.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()
	waitRunning(t, g)

	// State packets arrive at the configured size with strictly
	// increasing sequence numbers and a non-decreasing time base.
	buf := make([]byte, 256)
	var lastSeq uint32
	var lastMono float64
	for i := 0; i < 10; i++ {
		require.NoError(t, stateSock.SetReadDeadline(time.Now().Add(time.Second)))
		n, _, err := stateSock.ReadFromUDP(buf)
		require.NoError(t, err)
		require.Equal(t, protocol.StatePacketSize, n)

		st, err := protocol.DecodeState(buf[:n])
		require.NoError(t, err)
		assert.Greater(t, st.Seq, lastSeq)
		assert.GreaterOrEqual(t, st.TMono, lastMono)
		lastSeq = st.Seq
		lastMono = st.TMono
	}

	// A command sent twice with the same sequence is applied exactly once.
	cmdConn, err := net.Dial("udp", cfg.Transport.CmdAddr)
	require.NoError(t, err)
	defer cmdConn.Close()

	cmd := protocol.Actions{Seq: 1, Motors: protocol.Motors{M1: 100}}
	pkt := protocol.EncodeActions(cmd)
	_, err = cmdConn.Write(pkt)
	require.NoError(t, err)
	_, err = cmdConn.Write(pkt)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for len(driver.history()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("command never reached the board")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond) // let the duplicate drain through
	applies := driver.history()
	require.Len(t, applies, 1)
	assert.Equal(t, cmd, applies[0])

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not stop")
	}
	assert.Equal(t, StateStopped, g.State())

	// Shutdown leaves the board in the neutral state.
	applies = driver.history()
	require.NotEmpty(t, applies)
	assert.Equal(t, protocol.Neutral(), applies[len(applies)-1])
}

func TestGatewayStatusPort(t *testing.T) {
	stateSock, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer stateSock.Close()

	cfg := testConfig(t, stateSock.LocalAddr().String())
	g := New(cfg, newRecordingDriver(), diag.Nop())

	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background()) }()
	waitRunning(t, g)

	query := func(cmd string) string {
		conn, err := net.Dial("udp", cfg.Transport.InfoAddr)
		require.NoError(t, err)
		defer conn.Close()
		_, err = conn.Write([]byte(cmd))
		require.NoError(t, err)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		buf := make([]byte, 256)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		return string(buf[:n])
	}

	assert.Regexp(t, `^state=RUNNING uptime_s=\d+\.\d$`, query("status"))
	assert.Regexp(t, `^state=RUNNING uptime_s=`, query("ping"))
	assert.Equal(t, "err=unknown_command use=status", query("bogus"))

	// "stop" answers, then the whole gateway winds down.
	assert.Regexp(t, `^state=EXITING uptime_s=`, query("stop"))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not stop after stop command")
	}
	assert.Equal(t, StateStopped, g.State())
}
