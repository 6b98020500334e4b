package engine

import "math"

// eventQueue is satisfied by both the calendar queue (the Runtime's default)
// and the simple sorted-slice queue (used as a test oracle).
type eventQueue interface {
	insert(e *Event)
	cancel(e *Event)
	popMin() *Event
	len() int
}

const (
	initialBuckets = 16
	initialWidth   = Time(1)
	resampleCap    = 25
)

// calendarQueue is a bucketed priority queue keyed on Event.due, amortised
// O(1) per operation. Buckets are indexed by floor(due/width) mod n; dequeue
// sweeps forward from a cursor bucket looking for an event whose due time
// falls inside that bucket's time window, falling back to a full linear
// scan if nothing turns up within one lap (e.g. right after `now` jumps
// past a long idle stretch).
//
// Population is resampled when it exceeds 2n (grow) or drops below n/2-2
// (shrink): up to resampleCap gaps between consecutive due times are
// sampled, averaged after discarding outliers above twice the mean, and the
// result multiplied by 3 becomes the new bucket width.
type calendarQueue struct {
	buckets [][]*Event
	width   Time
	cursor  int
	top     Time // exclusive upper edge of the window at `cursor`
	count   int  // number of still-active (non-cancelled) entries
}

func newCalendarQueue() *calendarQueue {
	q := &calendarQueue{
		buckets: make([][]*Event, initialBuckets),
		width:   initialWidth,
	}
	q.top = q.width
	return q
}

func (q *calendarQueue) bucketFor(t Time) int {
	n := len(q.buckets)
	idx := int(math.Floor(float64(t) / float64(q.width)))
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func (q *calendarQueue) insert(e *Event) {
	b := q.bucketFor(e.due)
	q.buckets[b] = append(q.buckets[b], e)
	q.count++
	if q.count > 2*len(q.buckets) {
		q.resize()
	}
}

func (q *calendarQueue) cancel(e *Event) {
	if !e.active {
		return
	}
	e.active = false
	q.count--
	if len(q.buckets) > initialBuckets && q.count < len(q.buckets)/2-2 {
		q.resize()
	}
}

func (q *calendarQueue) len() int {
	return q.count
}

// popMin removes and returns the pending event with the smallest due time,
// breaking ties by insertion order (Event.seq). Returns nil if empty.
func (q *calendarQueue) popMin() *Event {
	if q.count == 0 {
		return nil
	}

	n := len(q.buckets)
	for swept := 0; swept < n; swept++ {
		if idx, ev := selectMin(q.buckets[q.cursor]); ev != nil && ev.due < q.top {
			q.buckets[q.cursor] = removeAt(q.buckets[q.cursor], idx)
			q.count--
			if len(q.buckets) > initialBuckets && q.count < len(q.buckets)/2-2 {
				q.resize()
			}
			return ev
		}
		q.cursor = (q.cursor + 1) % n
		q.top += q.width
	}

	ev := q.linearPopMin()
	if len(q.buckets) > initialBuckets && q.count < len(q.buckets)/2-2 {
		q.resize()
	}
	return ev
}

// selectMin scans one bucket chain for the active event with the smallest
// (due, seq), compacting already-cancelled entries out of the chain as it
// goes. It returns -1, nil if the bucket has no active entries left.
func selectMin(chain []*Event) (int, *Event) {
	bestIdx := -1
	var best *Event
	for i, ev := range chain {
		if !ev.active {
			continue
		}
		if best == nil || ev.due < best.due || (ev.due == best.due && ev.seq < best.seq) {
			best, bestIdx = ev, i
		}
	}
	return bestIdx, best
}

// linearPopMin is the fallback when a full sweep of the cursor finds nothing
// inside its window — e.g. the very first pop, or after `now` jumped across
// an empty stretch. It scans every bucket for the global minimum and
// resynchronises the cursor/top to it.
func (q *calendarQueue) linearPopMin() *Event {
	var best *Event
	bestBucket, bestIdx := -1, -1
	for bi, chain := range q.buckets {
		if idx, ev := selectMin(chain); ev != nil {
			if best == nil || ev.due < best.due || (ev.due == best.due && ev.seq < best.seq) {
				best, bestBucket, bestIdx = ev, bi, idx
			}
		}
	}
	if best == nil {
		return nil
	}

	q.buckets[bestBucket] = removeAt(q.buckets[bestBucket], bestIdx)
	q.count--
	q.cursor = bestBucket
	q.top = Time(math.Floor(float64(best.due)/float64(q.width))+1) * q.width
	return best
}

func removeAt(chain []*Event, i int) []*Event {
	return append(chain[:i], chain[i+1:]...)
}

// resize rebuilds the bucket array around a freshly sampled width. Stability
// (FIFO at equal due) survives a resize untouched because ties are always
// broken by Event.seq, not by physical chain position.
func (q *calendarQueue) resize() {
	active := q.collectActive()

	width := sampleWidth(active)
	n := bucketCountFor(len(active))

	q.buckets = make([][]*Event, n)
	q.width = width
	q.cursor = 0
	q.top = width

	for _, e := range active {
		b := q.bucketFor(e.due)
		q.buckets[b] = append(q.buckets[b], e)
	}
}

func (q *calendarQueue) collectActive() []*Event {
	active := make([]*Event, 0, q.count)
	for _, chain := range q.buckets {
		for _, e := range chain {
			if e.active {
				active = append(active, e)
			}
		}
	}
	return active
}

func bucketCountFor(count int) int {
	n := initialBuckets
	for n < count {
		n *= 2
	}
	return n
}

// sampleWidth picks a fresh bucket width: sort the events by due time, take
// the gaps between consecutive ones among the earliest resampleCap+1 (so at
// most resampleCap gaps), average the gaps that fall below twice their
// overall mean (discarding long outlier gaps), and multiply by 3.
func sampleWidth(active []*Event) Time {
	if len(active) < 2 {
		return initialWidth
	}

	sample := make([]*Event, len(active))
	copy(sample, active)
	sortByDue(sample)
	if len(sample) > resampleCap+1 {
		sample = sample[:resampleCap+1]
	}

	gaps := make([]float64, 0, len(sample)-1)
	for i := 1; i < len(sample); i++ {
		gaps = append(gaps, float64(sample[i].due-sample[i-1].due))
	}

	mean := meanOf(gaps)
	if mean <= 0 {
		return initialWidth
	}

	var sum float64
	var n int
	for _, g := range gaps {
		if g < 2*mean {
			sum += g
			n++
		}
	}
	if n == 0 {
		return initialWidth
	}

	width := Time(3 * (sum / float64(n)))
	if width <= 0 {
		return initialWidth
	}
	return width
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sortByDue sorts by (due, seq) with an insertion sort over the whole
// slice; sampleWidth passes it every active event and truncates afterwards.
func sortByDue(events []*Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && less(events[j], events[j-1]); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}
