package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeOrdersEventsByTime(t *testing.T) {
	rt := NewRuntime()
	var order []int

	rt.Schedule(5, func(Time) { order = append(order, 5) })
	rt.Schedule(1, func(Time) { order = append(order, 1) })
	rt.Schedule(3, func(Time) { order = append(order, 3) })

	rt.Run(10)

	assert.Equal(t, []int{1, 3, 5}, order)
	// the queue empties at 5, so the clock stays at the last event's time.
	assert.Equal(t, Time(5), rt.Now())
}

func TestRuntimeFIFOAtSameTime(t *testing.T) {
	rt := NewRuntime()
	var order []int

	rt.Schedule(2, func(Time) { order = append(order, 1) })
	rt.Schedule(2, func(Time) { order = append(order, 2) })
	rt.Schedule(2, func(Time) { order = append(order, 3) })

	rt.Run(10)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestCancelPreventsDelivery(t *testing.T) {
	rt := NewRuntime()
	fired := false

	e := rt.Schedule(1, func(Time) { fired = true })
	rt.Cancel(e)
	rt.Run(10)

	assert.False(t, fired)
}

func TestCancelIsIdempotent(t *testing.T) {
	rt := NewRuntime()
	e := rt.Schedule(1, func(Time) {})
	rt.Cancel(e)
	assert.NotPanics(t, func() { rt.Cancel(e) })
}

func TestScheduleInPastPanics(t *testing.T) {
	rt := NewRuntime()
	rt.Schedule(5, func(Time) {})
	rt.Run(5)

	assert.Panics(t, func() { rt.Schedule(1, func(Time) {}) })
}

func TestNowMonotonic(t *testing.T) {
	rt := NewRuntime()
	var seen []Time
	for _, d := range []Time{3, 1, 4, 1, 5, 9, 2, 6} {
		rt.Schedule(d, func(now Time) { seen = append(seen, now) })
	}
	rt.Run(100)

	for i := 1; i < len(seen); i++ {
		require.GreaterOrEqual(t, seen[i], seen[i-1])
	}
}

func TestTimerRearmReplacesPending(t *testing.T) {
	rt := NewRuntime()
	var fired []Time

	tm := NewTimer(rt, func(now Time) { fired = append(fired, now) })
	tm.Set(10)
	require.True(t, tm.Active())
	tm.Set(2) // re-arm before the first has a chance to fire

	rt.Run(100)

	assert.Equal(t, []Time{2}, fired)
}

func TestTimerCancel(t *testing.T) {
	rt := NewRuntime()
	fired := false
	tm := NewTimer(rt, func(Time) { fired = true })
	tm.Set(1)
	tm.Cancel()
	assert.False(t, tm.Active())
	rt.Run(10)
	assert.False(t, fired)
}

func TestPortFanOutInBindingOrder(t *testing.T) {
	rt := NewRuntime()
	var got []string

	out := &OutPort[string]{}
	a := NewInPort(func(_ Time, p string) { got = append(got, "a:"+p) })
	b := NewInPort(func(_ Time, p string) { got = append(got, "b:"+p) })
	Bind(rt, out, a)
	Bind(rt, out, b)

	out.Emit(rt.Now(), "hi")

	assert.Equal(t, []string{"a:hi", "b:hi"}, got)
}

func TestEmitOnUnboundPortIsNoOp(t *testing.T) {
	out := &OutPort[int]{}
	assert.NotPanics(t, func() { out.Emit(0, 42) })
}

func TestBindAfterRunStartPanics(t *testing.T) {
	rt := NewRuntime()
	rt.Run(0)

	out := &OutPort[int]{}
	in := NewInPort(func(Time, int) {})
	assert.Panics(t, func() { Bind(rt, out, in) })
}

type lifecycleRecorder struct {
	started, stopped bool
}

func (l *lifecycleRecorder) Start(*Runtime) { l.started = true }
func (l *lifecycleRecorder) Stop(*Runtime)  { l.stopped = true }

func TestRunStartsAndStopsRegisteredComponents(t *testing.T) {
	rt := NewRuntime()
	c := &lifecycleRecorder{}
	rt.Register(c)

	rt.Run(1)

	assert.True(t, c.started)
	assert.True(t, c.stopped)
}
