package gateway

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

const statusPollInterval = time.Second

// statusLoop answers the small operational text protocol on its own UDP
// port: "status"/"ping"/"health" report the run state and uptime, and
// "stop"/"exit" trigger a graceful shutdown.
func (g *Gateway) statusLoop(ctx context.Context, addr string) error {
	bind, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("status: resolve %q: %w", addr, err)
	}
	sock, err := net.ListenUDP("udp", bind)
	if err != nil {
		return fmt.Errorf("status: bind %q: %w", addr, err)
	}
	defer sock.Close()

	log := g.diag.Named("status")
	log.Infow("status responder listening", "addr", sock.LocalAddr().String())

	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := sock.SetReadDeadline(time.Now().Add(statusPollInterval)); err != nil {
			return fmt.Errorf("status: set deadline: %w", err)
		}
		n, peer, err := sock.ReadFromUDP(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Warnw("status read failed", "err", err)
			continue
		}

		var reply string
		switch strings.ToLower(strings.TrimSpace(string(buf[:n]))) {
		case "status", "status?", "ping", "health":
			reply = g.statusLine()
		case "stop", "exit":
			log.Infow("stop requested over status port", "peer", peer.String())
			g.beginExit()
			reply = g.statusLine()
		default:
			reply = "err=unknown_command use=status"
		}

		if _, err := sock.WriteToUDP([]byte(reply), peer); err != nil {
			log.Warnw("status reply failed", "peer", peer.String(), "err", err)
		}
	}
}

func (g *Gateway) statusLine() string {
	return fmt.Sprintf("state=%s uptime_s=%.1f", g.State(), time.Since(g.start).Seconds())
}
