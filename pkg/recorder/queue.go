package recorder

import (
	"sync/atomic"
	"time"
)

// Entry is one timestamped record. Ownership transfers producer -> queue
// -> drain worker; entries are immutable once enqueued.
type Entry[T any] struct {
	Wall time.Time
	Mono float64
	Data T
}

// Queue is a bounded FIFO with drop-on-full semantics. Producers never
// block: recording is best-effort and must not slow the control loops.
type Queue[T any] struct {
	ch    chan Entry[T]
	drops atomic.Uint64
}

func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{ch: make(chan Entry[T], capacity)}
}

// TryPut enqueues without blocking. A full queue drops the entry and
// reports false; the drop is counted for observability only.
func (q *Queue[T]) TryPut(wall time.Time, mono float64, data T) bool {
	select {
	case q.ch <- Entry[T]{Wall: wall, Mono: mono, Data: data}:
		return true
	default:
		q.drops.Add(1)
		return false
	}
}

// TryGet dequeues without blocking.
func (q *Queue[T]) TryGet() (Entry[T], bool) {
	select {
	case e := <-q.ch:
		return e, true
	default:
		return Entry[T]{}, false
	}
}

func (q *Queue[T]) Len() int      { return len(q.ch) }
func (q *Queue[T]) Cap() int      { return cap(q.ch) }
func (q *Queue[T]) Drops() uint64 { return q.drops.Load() }
