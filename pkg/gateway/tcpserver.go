package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"rovergate/pkg/protocol"
	"rovergate/pkg/transport"
)

const acceptPollInterval = 500 * time.Millisecond

// acceptLoop serves TCP clients one at a time. When either loop of the
// active session ends (peer disconnect, transport error), both are
// stopped, the board is safe-stated, and the listener goes back to
// accepting the next client.
func (g *Gateway) acceptLoop(ctx context.Context, srv *transport.Server) {
	log := g.diag.Named("accept")

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := srv.Accept(acceptPollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorw("accept failed", "err", err)
			g.beginExit()
			return
		}
		if conn == nil {
			continue
		}

		session := uuid.NewString()[:8]
		log.Infow("client connected",
			"session", session, "peer", conn.RemoteAddr().String())

		g.serveSession(ctx, conn, session)

		// The client owning the link is gone; do not keep running its
		// last command.
		g.applyToBoard(protocol.Neutral())
		conn.Close()
		log.Infow("client session ended", "session", session)
	}
}

// serveSession runs publish, receive and watchdog bound to one accepted
// connection and returns once any of them stops.
func (g *Gateway) serveSession(ctx context.Context, conn *transport.TCPConn, session string) {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	stop := func(name string, err error) {
		if err != nil && sessCtx.Err() == nil {
			g.diag.Named(name).Warnw("session loop stopped",
				"session", session, "err", err)
		}
		cancel()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		stop("tx", g.publishLoop(sessCtx, conn))
	}()
	go func() {
		defer wg.Done()
		stop("rx", g.receiveLoop(sessCtx, conn))
	}()
	go func() {
		defer wg.Done()
		stop("watchdog", g.watchdogLoop(sessCtx))
	}()

	wg.Wait()
}
