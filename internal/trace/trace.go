// Package trace exposes the simulation's observable output: per-event log
// records and per-node aggregate counters. A Recorder plugs into the port
// graph as an ordinary extra logging destination, the natural shape given
// how internal/engine's fan-out ports already work; file layout and
// formatting stay with whatever consumes the log stream.
package trace

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"

	"github.com/doismellburning/komondor-go/internal/engine"
	"github.com/doismellburning/komondor-go/internal/node"
)

// defaultTimestampFormat is an strftime pattern applied to time.Now() at
// log time; a run summary, unlike a per-packet trace line, is worth dating
// as well as timing.
const defaultTimestampFormat = "%Y-%m-%d %H:%M:%S"

// Recorder taps the component/port graph as an extra, logging-only
// destination on every node's output ports, and later summarizes each
// Node's public Counters (throughput, packets sent/lost with cause
// breakdown, average delay, time in NAV, air-time utilisation, hidden-node
// set).
type Recorder struct {
	log             *log.Logger
	timestampFormat string
}

// NewRecorder wraps a github.com/charmbracelet/log logger. A nil logger
// falls back to log.Default(). The wall-clock
// timestamp stamped on each run summary uses defaultTimestampFormat; use
// NewRecorderWithTimestampFormat to override it.
func NewRecorder(logger *log.Logger) *Recorder {
	return NewRecorderWithTimestampFormat(logger, defaultTimestampFormat)
}

// NewRecorderWithTimestampFormat is NewRecorder with an explicit
// "github.com/lestrrat-go/strftime" pattern for the run-summary wall-clock
// timestamp.
func NewRecorderWithTimestampFormat(logger *log.Logger, format string) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{log: logger, timestampFormat: format}
}

// formattedNow renders the current wall-clock time with r.timestampFormat,
// falling back to defaultTimestampFormat if the pattern is malformed.
func (r *Recorder) formattedNow() string {
	ts, err := strftime.Format(r.timestampFormat, time.Now())
	if err != nil {
		ts, _ = strftime.Format(defaultTimestampFormat, time.Now())
	}
	return ts
}

// StartTxSink returns an InPort suitable for binding alongside a node's real
// peers: every emitStartTx it observes is logged at Debug level. label
// identifies the node whose output port the sink is bound to; Attach passes
// the emitting node's own label.
func (r *Recorder) StartTxSink(label string) *engine.InPort[node.Notification] {
	return engine.NewInPort(func(now engine.Time, n node.Notification) {
		r.log.Debug("start-tx", "at", label, "now", now, "src", n.SrcID, "dst", n.DstID,
			"type", n.Type, "channels", n.Channels, "duration", n.TxDuration, "seq", n.Seq)
	})
}

// FinishTxSink is StartTxSink's counterpart for emitFinishTx.
func (r *Recorder) FinishTxSink(label string) *engine.InPort[node.Notification] {
	return engine.NewInPort(func(now engine.Time, n node.Notification) {
		r.log.Debug("finish-tx", "at", label, "now", now, "src", n.SrcID, "dst", n.DstID,
			"type", n.Type, "seq", n.Seq)
	})
}

// NackSink logs emitNack notifications: the Loss Oracle's verdicts are the
// one place a lost frame's cause becomes observable as an event, not just an
// eventual counter.
func (r *Recorder) NackSink(label string) *engine.InPort[node.Nack] {
	return engine.NewInPort(func(now engine.Time, n node.Nack) {
		r.log.Debug("nack", "at", label, "now", now, "dst", n.DstID, "seq", n.Seq, "cause", n.Cause)
	})
}

// Attach wires label's three sinks as additional destinations on n's output
// ports, on top of whatever peer bindings node.Wire already established.
// Must run before the owning Runtime starts, same as any other Bind.
func Attach(rt *engine.Runtime, r *Recorder, label string, n *node.Node) {
	engine.Bind(rt, &n.OutStartTx, r.StartTxSink(label))
	engine.Bind(rt, &n.OutFinishTx, r.FinishTxSink(label))
	engine.Bind(rt, &n.OutNack, r.NackSink(label))
}

// NodeSummary is one node's aggregate statistics at the end of a run:
// throughput, packets sent/lost broken down by cause, average delay, time
// spent in NAV, air-time utilisation, and the set of peers this node has
// observed colliding with one of its receptions.
type NodeSummary struct {
	NodeID          int
	PacketsSent     int
	PacketsLost     int
	LostByCause     map[string]int
	ThroughputBPS   float64
	AverageDelay    float64
	NAVTime         float64
	AirTimeFraction float64
	HiddenNodes     []int
}

// Summarize builds one NodeSummary per node, computing throughput and
// air-time utilisation against simDuration (seconds). payloadBits is the
// per-packet payload size used to turn a delivered-packet count into bits
// per second; pass the same value used to build the scenario's frame
// parameters.
func Summarize(nodes []*node.Node, simDuration, payloadBits float64) []NodeSummary {
	out := make([]NodeSummary, 0, len(nodes))
	for _, n := range nodes {
		c := n.Counters
		lostByCause := make(map[string]int, len(c.LostBy))
		for cause, count := range c.LostBy {
			lostByCause[cause.String()] = count
		}

		hidden := make([]int, 0, len(c.HiddenSet))
		for peer := range c.HiddenSet {
			hidden = append(hidden, peer)
		}

		var throughput, airFraction float64
		if simDuration > 0 {
			throughput = float64(c.Delivered) * payloadBits / simDuration
			airFraction = c.AirTime / simDuration
		}

		out = append(out, NodeSummary{
			NodeID:          n.ID,
			PacketsSent:     c.Sent,
			PacketsLost:     c.Lost(),
			LostByCause:     lostByCause,
			ThroughputBPS:   throughput,
			AverageDelay:    c.AverageDelay(),
			NAVTime:         c.NAVTime,
			AirTimeFraction: airFraction,
			HiddenNodes:     hidden,
		})
	}
	return out
}

// LogSummary writes one Info-level line per NodeSummary — the run-summary
// counterpart to the per-event Debug lines StartTxSink/FinishTxSink/NackSink
// emit during the run.
func (r *Recorder) LogSummary(summaries []NodeSummary) {
	r.log.Info("run-summary", "at", r.formattedNow(), "nodes", len(summaries))
	for _, s := range summaries {
		r.log.Info("node-summary",
			"node", s.NodeID,
			"sent", s.PacketsSent,
			"lost", s.PacketsLost,
			"lost_by_cause", s.LostByCause,
			"throughput_bps", s.ThroughputBPS,
			"avg_delay", s.AverageDelay,
			"nav_time", s.NAVTime,
			"air_time_fraction", s.AirTimeFraction,
			"hidden_nodes", s.HiddenNodes,
		)
	}
}
