// Package gateway is the runtime core: it wires the board driver, wire
// codec, transport, recorder, diagnostics and bridges together and runs
// the fixed-rate publish, receive and watchdog workers.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rovergate/pkg/board"
	"rovergate/pkg/config"
	"rovergate/pkg/diag"
	"rovergate/pkg/hub"
	"rovergate/pkg/protocol"
	"rovergate/pkg/recorder"
	"rovergate/pkg/transport"
)

// RunState is the controller lifecycle: READY -> RUNNING -> EXITING ->
// STOPPED. The transition to EXITING is idempotent.
type RunState int32

const (
	StateReady RunState = iota
	StateRunning
	StateExiting
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateExiting:
		return "EXITING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

type Gateway struct {
	cfg   config.Config
	board board.Driver
	diag  *diag.Service

	rec *recorder.Recorder
	hub *hub.Hub
	cmd *commandCell

	seq   atomic.Uint32
	state atomic.Int32
	start time.Time

	exitOnce sync.Once
	exit     context.CancelFunc
}

// New assembles a gateway from an already validated configuration and a
// connected board driver.
func New(cfg config.Config, driver board.Driver, svc *diag.Service) *Gateway {
	now := time.Now()
	g := &Gateway{
		cfg:   cfg,
		board: driver,
		diag:  svc,
		hub:   hub.New(),
		cmd:   newCommandCell(now),
		start: now,
	}
	if cfg.Recorder.Enable {
		g.rec = recorder.New(cfg.Recorder.Dir, cfg.Recorder.Prefix,
			cfg.Recorder.QueueMax, svc.Named("recorder"))
	}
	return g
}

// Hub exposes the live telemetry fan-out for bridges.
func (g *Gateway) Hub() *hub.Hub {
	return g.hub
}

func (g *Gateway) State() RunState {
	return RunState(g.state.Load())
}

func (g *Gateway) nextSeq() uint32 {
	return g.seq.Add(1)
}

// monoSeconds is the gateway-wide monotonic time base, seconds since
// start; stamped into every State packet and recorder entry.
func (g *Gateway) monoSeconds(now time.Time) float64 {
	return now.Sub(g.start).Seconds()
}

// beginExit requests shutdown. Safe to call any number of times from any
// worker or from the status responder.
func (g *Gateway) beginExit() {
	g.exitOnce.Do(func() {
		g.state.Store(int32(StateExiting))
		if g.exit != nil {
			g.exit()
		}
	})
}

// Run starts every worker, blocks until the gateway exits, and performs
// the orderly shutdown sequence: stop signal, join workers, safe-state
// the board, release sockets. Only startup failures are returned; loop
// failures are logged and converted into a stop.
func (g *Gateway) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.exit = cancel

	log := g.diag.Named("gateway")
	g.state.Store(int32(StateReady))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		g.hub.Run(runCtx)
	}()

	if g.rec != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.rec.Run(runCtx)
		}()
	}

	if d := g.cfg.Timing.DurationS; d > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-runCtx.Done():
			case <-time.After(time.Duration(d * float64(time.Second))):
				log.Infow("configured duration reached", "duration_s", d)
				g.beginExit()
			}
		}()
	}

	var err error
	switch g.cfg.Transport.Mode {
	case "udp":
		err = g.runUDP(runCtx)
	case "tcp":
		err = g.runTCP(runCtx)
	default:
		err = fmt.Errorf("gateway: unsupported transport mode %q", g.cfg.Transport.Mode)
	}
	if err != nil {
		// Startup failure: nothing ran, unwind the helpers already started.
		g.beginExit()
		wg.Wait()
		g.state.Store(int32(StateStopped))
		return err
	}

	g.beginExit()
	wg.Wait()

	// Final fail-safe: leave the board in the neutral state.
	g.applyToBoard(protocol.Neutral())
	g.state.Store(int32(StateStopped))
	log.Infow("gateway stopped")
	return nil
}

// runUDP opens the datagram endpoints and drives one set of loops for the
// whole process lifetime; any worker error stops the gateway. The loops
// are joined before the sockets are released.
func (g *Gateway) runUDP(ctx context.Context) error {
	log := g.diag.Named("gateway")

	conn, err := transport.OpenUDP(g.cfg.Transport.CmdAddr, g.cfg.Transport.StateAddr)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	defer conn.Close()

	log.Infow("udp endpoints open",
		"rx", conn.LocalRxAddr().String(),
		"tx", g.cfg.Transport.StateAddr,
		"state_hz", g.cfg.Timing.StateHz)

	var loops sync.WaitGroup
	if addr := g.cfg.Transport.InfoAddr; addr != "" {
		g.startWorker(ctx, &loops, "status", func(c context.Context) error {
			return g.statusLoop(c, addr)
		})
	}

	g.state.Store(int32(StateRunning))
	g.startWorker(ctx, &loops, "tx", func(c context.Context) error {
		return g.publishLoop(c, conn)
	})
	g.startWorker(ctx, &loops, "rx", func(c context.Context) error {
		return g.receiveLoop(c, conn)
	})
	g.startWorker(ctx, &loops, "watchdog", g.watchdogLoop)

	<-ctx.Done()
	loops.Wait()
	return nil
}

// runTCP serves one client at a time: accept, run the loops against the
// connection, and on disconnect safe-state the board and return to
// accepting the next client.
func (g *Gateway) runTCP(ctx context.Context) error {
	log := g.diag.Named("gateway")

	srv, err := transport.ListenTCP(g.cfg.Transport.ListenAddr)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	defer srv.Close()

	log.Infow("tcp listening",
		"addr", srv.Addr().String(), "state_hz", g.cfg.Timing.StateHz)

	g.state.Store(int32(StateRunning))

	var loops sync.WaitGroup
	loops.Add(1)
	go func() {
		defer loops.Done()
		g.acceptLoop(ctx, srv)
	}()

	<-ctx.Done()
	loops.Wait()
	return nil
}

// startWorker runs fn until it returns. A non-nil error is fatal to the
// gateway: it is logged once and converted into the shared stop signal,
// never propagated into a sibling's call stack.
func (g *Gateway) startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			g.diag.Named(name).Errorw("worker stopped", "err", err)
			g.beginExit()
		}
	}()
}
