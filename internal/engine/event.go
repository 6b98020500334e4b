package engine

// Time is simulated time, in seconds, since a Runtime started.
type Time float64

// Activation is invoked when a scheduled Event fires. now is the simulated
// time at which it fires — always equal to the Event's Due time.
type Activation func(now Time)

// Event is a single scheduled point in simulated time: an opaque activation
// target plus a due time. It is created by Runtime.Schedule, delivered and
// discarded by the runtime when popped, and may be Cancelled beforehand.
//
// seq records insertion order and is the tiebreaker for events scheduled
// at the same due time: same-instant delivery is FIFO by insertion order.
type Event struct {
	due      Time
	seq      uint64
	active   bool
	activate Activation
}

// Due returns the simulated time at which e is scheduled to fire.
func (e *Event) Due() Time { return e.due }

// Active reports whether e is still pending: not yet fired and not cancelled.
func (e *Event) Active() bool { return e.active }
