package gateway

import "time"

// schedule implements the drift-corrected fixed-rate tick plan. The next
// tick target always advances by exactly dt, never resynchronizing to the
// current time: a transient overrun is absorbed by firing back-to-back
// ticks instead of permanently shifting the schedule.
type schedule struct {
	next time.Time
	dt   time.Duration
}

func newSchedule(hz float64, now time.Time) schedule {
	return schedule{
		next: now,
		dt:   time.Duration(float64(time.Second) / hz),
	}
}

// advance reports whether a tick fires at now. When no tick is due it
// returns the remaining wait; when one is due, the target moves forward
// one interval and the tick fires immediately.
func (s *schedule) advance(now time.Time) (fire bool, wait time.Duration) {
	if now.Before(s.next) {
		return false, s.next.Sub(now)
	}
	s.next = s.next.Add(s.dt)
	return true, 0
}
