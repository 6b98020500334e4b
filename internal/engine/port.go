package engine

// OutPort fans a payload out to every InPort bound to it. Emitting invokes
// each bound handler synchronously, with `now` unchanged, in binding order.
// Emitting on an unbound OutPort is a no-op, not an error.
type OutPort[P any] struct {
	dsts []func(now Time, p P)
}

// Emit delivers p to every InPort bound to o, in binding order.
func (o *OutPort[P]) Emit(now Time, p P) {
	for _, deliver := range o.dsts {
		deliver(now, p)
	}
}

// InPort accepts payloads of type P via a handler supplied at construction.
type InPort[P any] struct {
	handler func(now Time, p P)
}

// NewInPort wraps handler as an InPort. handler must not itself Emit on an
// OutPort belonging to the same component during the same activation — the
// port graph does not support recursive emission; the idiomatic pattern is
// to arm a Timer and Emit from the timer's own callback instead.
func NewInPort[P any](handler func(now Time, p P)) *InPort[P] {
	return &InPort[P]{handler: handler}
}

func (i *InPort[P]) deliver(now Time, p P) {
	if i.handler != nil {
		i.handler(now, p)
	}
}

// Bind connects src to dst: every future Emit on src also invokes dst's
// handler. Fan-out is supported by calling Bind more than once on the same
// src. Bind panics if rt's Run has already started — bindings must be
// finalised before the event loop runs.
func Bind[P any](rt *Runtime, src *OutPort[P], dst *InPort[P]) {
	if rt.Started() {
		panic("engine: cannot bind ports after Run has started")
	}
	src.dsts = append(src.dsts, dst.deliver)
}
