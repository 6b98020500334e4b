package trace

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/komondor-go/internal/bonding"
	"github.com/doismellburning/komondor-go/internal/engine"
	"github.com/doismellburning/komondor-go/internal/node"
	"github.com/doismellburning/komondor-go/internal/phy"
	"github.com/doismellburning/komondor-go/internal/rng"
	"github.com/doismellburning/komondor-go/internal/simconfig"
)

type flatRateTable struct{ bitsPerSymbol float64 }

func (f flatRateTable) BitsPerSymbol(phy.MCS, int) float64 { return f.bitsPerSymbol }
func (f flatRateTable) CodingRate(phy.MCS) float64         { return 1 }
func (f flatRateTable) MinSINR(phy.MCS) float64            { return 1 }

func buildTwoNodeRun(t *testing.T) (*engine.Runtime, []*node.Node) {
	t.Helper()
	rt := engine.NewRuntime()
	src := rng.New(7)
	sys := simconfig.System{
		Channels:            1,
		BackoffDistribution: simconfig.BackoffDeterministic,
		TxTimeDistribution:  simconfig.BackoffDeterministic,
		FrameLengthBits:     12000,
		AckLengthBits:       12000,
		SIFS:                10e-6,
		SlotTime:            9e-6,
	}
	frame := phy.FrameParams{SymbolTime: 80e-6}
	rates := flatRateTable{bitsPerSymbol: 12000}

	mk := func(id, peer int, pos r3.Vector) *node.Node {
		cfg := simconfig.Node{
			ID:               id,
			Position:         pos,
			AllowedChannels:  bonding.Range{Low: 0, High: 0},
			PrimaryChannel:   0,
			CWMin:            15,
			StageMax:         5,
			DefaultTxPower:   1e9,
			MaxTxPower:       1e9,
			DefaultPD:        1e-3,
			TxGain:           1,
			RxGain:           1,
			BondingPolicy:    bonding.OnlyPrimary,
			CentralFrequency: 2.4e9,
			BOLambda:         9e-6,
			Peer:             peer,
		}
		return node.New(rt, src, sys, cfg, phy.FreeSpaceModel{}, rates, frame, 0)
	}

	a := mk(0, 1, r3.Vector{X: 0, Y: 0, Z: 0})
	b := mk(1, 0, r3.Vector{X: 1, Y: 0, Z: 0})
	nodes := []*node.Node{a, b}
	rt.Register(a)
	rt.Register(b)
	node.Wire(rt, nodes)
	return rt, nodes
}

func TestAttachLogsWithoutAffectingSemantics(t *testing.T) {
	rt, nodes := buildTwoNodeRun(t)
	recorder := NewRecorder(nil)
	for i, n := range nodes {
		Attach(rt, recorder, nodeLabel(i), n)
	}

	rt.Run(0.01)

	for _, n := range nodes {
		assert.Equal(t, n.Counters.Sent, n.Counters.Delivered+n.Counters.Lost())
		assert.Greater(t, n.Counters.Sent, 0)
	}
}

func TestSummarizeReportsPerNodeCounters(t *testing.T) {
	rt, nodes := buildTwoNodeRun(t)
	rt.Run(0.01)

	summaries := Summarize(nodes, 0.01, 12000)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, s.PacketsSent, s.PacketsLost+deliveredFor(nodes, s.NodeID))
		assert.GreaterOrEqual(t, s.ThroughputBPS, 0.0)
		assert.GreaterOrEqual(t, s.AirTimeFraction, 0.0)
	}
}

func deliveredFor(nodes []*node.Node, id int) int {
	for _, n := range nodes {
		if n.ID == id {
			return n.Counters.Delivered
		}
	}
	return 0
}

func nodeLabel(i int) string {
	return "node-" + string(rune('a'+i))
}
