package engine

// simpleQueue is the correct-but-O(n)-insert schedule kept alongside the
// calendar queue: a slice kept sorted ascending by (due, seq). It exists
// mainly as a test oracle — property tests check that the calendar queue
// dequeues events in the same order this one would.
type simpleQueue struct {
	events []*Event
}

func newSimpleQueue() *simpleQueue {
	return &simpleQueue{}
}

func (q *simpleQueue) insert(e *Event) {
	i := 0
	for i < len(q.events) && less(q.events[i], e) {
		i++
	}
	q.events = append(q.events, nil)
	copy(q.events[i+1:], q.events[i:])
	q.events[i] = e
}

func (q *simpleQueue) cancel(e *Event) {
	if !e.active {
		return
	}
	e.active = false
	for i, ev := range q.events {
		if ev == e {
			q.events = append(q.events[:i], q.events[i+1:]...)
			return
		}
	}
}

func (q *simpleQueue) popMin() *Event {
	for len(q.events) > 0 {
		e := q.events[0]
		q.events = q.events[1:]
		if e.active {
			return e
		}
	}
	return nil
}

func (q *simpleQueue) len() int {
	return len(q.events)
}

func less(a, b *Event) bool {
	if a.due != b.due {
		return a.due < b.due
	}
	return a.seq < b.seq
}
