package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rovergate/pkg/hub"
	"rovergate/pkg/protocol"
	"rovergate/pkg/transport"
)

const (
	// receive poll bound; also bounds shutdown latency of the loop.
	rxPollInterval = 100 * time.Millisecond

	// periodic console trace of live traffic.
	traceInterval = time.Second
)

// publishLoop reads the board at the configured rate, encodes and
// transmits each snapshot, and tees it to the recorder and the live hub.
func (g *Gateway) publishLoop(ctx context.Context, conn transport.Conn) error {
	log := g.diag.Named("tx")
	sched := newSchedule(g.cfg.Timing.StateHz, time.Now())
	timer := time.NewTimer(0)
	defer timer.Stop()
	var lastTrace time.Time

	for {
		if ctx.Err() != nil {
			return nil
		}

		now := time.Now()
		fire, wait := sched.advance(now)
		if !fire {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
			continue
		}

		st := g.board.ReadState()
		st.Seq = g.nextSeq()
		st.TMono = g.monoSeconds(now)

		if err := conn.Send(protocol.EncodeState(st)); err != nil {
			return fmt.Errorf("publish: %w", err)
		}

		if g.rec != nil {
			g.rec.States.TryPut(now, st.TMono, st)
		}
		g.hub.Publish(hub.Sample{Wall: now, State: st})

		if now.Sub(lastTrace) >= traceInterval {
			lastTrace = now
			log.Debugw("state published",
				"seq", st.Seq,
				"roll", st.Ang.Roll, "pitch", st.Ang.Pitch, "yaw", st.Ang.Yaw,
				"battery", st.Battery)
		}
	}
}

// receiveLoop waits for command packets and applies each one whose
// sequence differs from the last applied command. Malformed input is
// discarded with a warning; only a transport-level error ends the loop.
func (g *Gateway) receiveLoop(ctx context.Context, conn transport.Conn) error {
	log := g.diag.Named("rx")
	var lastTrace time.Time

	for {
		if ctx.Err() != nil {
			return nil
		}

		pkt, err := conn.TryReceive(rxPollInterval, protocol.ActionPacketSize)
		if err != nil {
			if errors.Is(err, transport.ErrPeerDisconnected) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if pkt == nil {
			continue
		}

		a, err := protocol.DecodeActions(pkt)
		if err != nil {
			log.Warnw("discarding malformed command packet", "err", err)
			continue
		}

		now := time.Now()
		applied := g.cmd.acceptAndApply(a, now, g.applyToBoard)
		if !applied {
			continue
		}

		if g.rec != nil {
			g.rec.Cmds.TryPut(now, g.monoSeconds(now), a)
		}
		if now.Sub(lastTrace) >= traceInterval {
			lastTrace = now
			log.Infow("command applied",
				"seq", a.Seq,
				"m1", a.Motors.M1, "m2", a.Motors.M2,
				"m3", a.Motors.M3, "m4", a.Motors.M4,
				"beep_ms", a.BeepMs)
		}
	}
}

// applyToBoard forwards a command to the driver. A board failure is
// logged and swallowed: one failed actuation must not stop the loops.
func (g *Gateway) applyToBoard(a protocol.Actions) {
	if err := g.board.ApplyActions(a); err != nil {
		g.diag.Named("board").Warnw("apply failed", "seq", a.Seq, "err", err)
	}
}
