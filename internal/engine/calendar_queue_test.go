package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestCalendarQueueResizeScenario schedules 10,000 events uniformly in
// [0,1) and expects an ascending dequeue sequence, with resizes happening
// somewhere along the way.
func TestCalendarQueueResizeScenario(t *testing.T) {
	q := newCalendarQueue()
	src := rand.New(rand.NewSource(42))

	const n = 10_000
	var seq uint64
	for i := 0; i < n; i++ {
		e := &Event{due: Time(src.Float64()), seq: seq, active: true}
		seq++
		q.insert(e)
	}
	require.Equal(t, n, q.len())

	var prev Time
	count := 0
	for {
		e := q.popMin()
		if e == nil {
			break
		}
		assert.GreaterOrEqual(t, e.due, prev)
		prev = e.due
		count++
	}
	assert.Equal(t, n, count)
}

// TestCalendarQueueMatchesSimpleQueue is a property test: for any sequence
// of scheduled times followed by cancellations, the calendar queue must
// dequeue events in exactly the same order as the O(n)-insert simple queue
// oracle. Both queues hold the very same *Event pointers, so a cancellation
// registered once (it mutates the shared Event.active flag) is visible to
// both; only insertion order into each queue's own structure differs.
func TestCalendarQueueMatchesSimpleQueue(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 300).Draw(rt, "n")

		cal := newCalendarQueue()
		simple := newSimpleQueue()

		var seq uint64
		events := make([]*Event, 0, n)
		for i := 0; i < n; i++ {
			due := Time(rapid.Float64Range(0, 1000).Draw(rt, "due"))
			e := &Event{due: due, seq: seq, active: true}
			seq++
			cal.insert(e)
			simple.insert(e)
			events = append(events, e)
		}

		cancelFraction := rapid.IntRange(0, 4).Draw(rt, "cancelEvery")
		if cancelFraction > 0 {
			for i, e := range events {
				if i%cancelFraction == 0 {
					cal.cancel(e)
				}
			}
		}

		var got, want []Time
		for {
			e := cal.popMin()
			if e == nil {
				break
			}
			got = append(got, e.due)
		}
		for {
			e := simple.popMin()
			if e == nil {
				break
			}
			want = append(want, e.due)
		}

		assert.Equal(rt, want, got)
	})
}
