// Package recorder tees gateway traffic into CSV stores through two
// bounded queues. Recording is strictly best-effort: producers drop on a
// full queue, and a recorder failure never touches the control loops.
package recorder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rovergate/pkg/protocol"
)

// idle back-off when neither queue yields an entry.
const drainBackoff = 10 * time.Millisecond

type Recorder struct {
	States *Queue[protocol.State]
	Cmds   *Queue[protocol.Actions]

	dir    string
	prefix string
	log    *zap.SugaredLogger
}

func New(dir, prefix string, queueMax int, log *zap.SugaredLogger) *Recorder {
	return &Recorder{
		States: NewQueue[protocol.State](queueMax),
		Cmds:   NewQueue[protocol.Actions](queueMax),
		dir:    dir,
		prefix: prefix,
		log:    log,
	}
}

// Run opens both stores and drains until ctx is done, then flushes what is
// left in the queues. A storage failure terminates only this worker.
func (r *Recorder) Run(ctx context.Context) {
	stateStore, err := openCSV(r.dir, r.prefix+"_state", stateHeader)
	if err != nil {
		r.log.Errorw("recorder stopped", "err", err)
		return
	}
	defer stateStore.close()

	cmdStore, err := openCSV(r.dir, r.prefix+"_cmd", actionsHeader)
	if err != nil {
		r.log.Errorw("recorder stopped", "err", err)
		return
	}
	defer cmdStore.close()

	r.log.Infow("recorder started", "state_file", stateStore.path, "cmd_file", cmdStore.path)

	for {
		select {
		case <-ctx.Done():
			r.drainRemaining(stateStore, cmdStore)
			r.log.Infow("recorder stopped",
				"state_drops", r.States.Drops(), "cmd_drops", r.Cmds.Drops())
			return
		default:
		}

		drained := false
		if ok, err := r.drainState(stateStore); err != nil {
			r.log.Errorw("recorder stopped", "err", err)
			return
		} else if ok {
			drained = true
		}
		if ok, err := r.drainCmd(cmdStore); err != nil {
			r.log.Errorw("recorder stopped", "err", err)
			return
		} else if ok {
			drained = true
		}

		if !drained {
			select {
			case <-ctx.Done():
			case <-time.After(drainBackoff):
			}
		}
	}
}

func (r *Recorder) drainState(store *csvStore) (bool, error) {
	e, ok := r.States.TryGet()
	if !ok {
		return false, nil
	}
	return true, store.writeRow(stateRow(e))
}

func (r *Recorder) drainCmd(store *csvStore) (bool, error) {
	e, ok := r.Cmds.TryGet()
	if !ok {
		return false, nil
	}
	return true, store.writeRow(actionsRow(e))
}

func (r *Recorder) drainRemaining(stateStore, cmdStore *csvStore) {
	for {
		e, ok := r.States.TryGet()
		if !ok {
			break
		}
		if err := stateStore.writeRow(stateRow(e)); err != nil {
			return
		}
	}
	for {
		e, ok := r.Cmds.TryGet()
		if !ok {
			break
		}
		if err := cmdStore.writeRow(actionsRow(e)); err != nil {
			return
		}
	}
}
