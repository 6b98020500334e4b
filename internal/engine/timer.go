package engine

// Timer is a named, single-slot scheduled callback owned by a component. At
// most one event is ever pending for a given Timer: Set cancels whatever
// was previously armed and schedules a fresh one, so re-arming always
// replaces.
type Timer struct {
	rt      *Runtime
	pending *Event
	fire    func(now Time)
}

// NewTimer creates a Timer on rt that invokes fire when it expires.
func NewTimer(rt *Runtime, fire func(now Time)) *Timer {
	return &Timer{rt: rt, fire: fire}
}

// Set arms the timer to fire at `at`, replacing any event currently pending.
func (t *Timer) Set(at Time) {
	t.cancelPending()
	t.pending = t.rt.schedule(at, func(now Time) {
		t.pending = nil
		t.fire(now)
	})
}

// Cancel removes the timer's pending event, if any. Idempotent.
func (t *Timer) Cancel() {
	t.cancelPending()
}

func (t *Timer) cancelPending() {
	if t.pending != nil {
		t.rt.Cancel(t.pending)
		t.pending = nil
	}
}

// Active reports whether the timer currently has an event pending.
func (t *Timer) Active() bool {
	return t.pending != nil
}

// DueAt returns the timer's pending due time, if any.
func (t *Timer) DueAt() (Time, bool) {
	if t.pending == nil {
		return 0, false
	}
	return t.pending.due, true
}
