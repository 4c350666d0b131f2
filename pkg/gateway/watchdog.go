package gateway

import (
	"context"
	"time"
)

// Watchdog granularity bounds. The timer runs a fraction of the timeout
// so staleness is caught shortly after the window expires, capped at one
// tick per second for long timeouts.
const (
	watchdogMaxInterval = time.Second
	watchdogMinInterval = 10 * time.Millisecond
)

// watchdogLoop forces the neutral command through the regular apply path
// once the last accepted command becomes older than the configured
// timeout. A timeout <= 0 disables the watchdog entirely.
func (g *Gateway) watchdogLoop(ctx context.Context) error {
	timeout := time.Duration(g.cfg.Timing.CmdTimeoutS * float64(time.Second))
	if timeout <= 0 {
		// Disabled; park until shutdown so sibling loops keep running.
		<-ctx.Done()
		return nil
	}

	interval := timeout / 5
	if interval > watchdogMaxInterval {
		interval = watchdogMaxInterval
	}
	if interval < watchdogMinInterval {
		interval = watchdogMinInterval
	}

	log := g.diag.Named("watchdog")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			applied, age := g.cmd.neutralIfStale(now, timeout, g.applyToBoard)
			if applied {
				log.Warnw("command stale, neutral applied",
					"age_s", age.Seconds(), "timeout_s", timeout.Seconds())
			}
		}
	}
}
