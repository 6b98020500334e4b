package agent

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

func buildPair(rt *engine.Runtime, src *rng.Source) []*node.Node {
	sys := simconfig.System{
		Channels:            2,
		BackoffDistribution: simconfig.BackoffDeterministic,
		TxTimeDistribution:  simconfig.BackoffDeterministic,
		FrameLengthBits:     12000,
		AckLengthBits:       12000,
		SIFS:                10e-6,
		DIFS:                28e-6,
		SlotTime:            9e-6,
	}
	mk := func(id, peer int, pos r3.Vector) *node.Node {
		cfg := simconfig.Node{
			ID:               id,
			Position:         pos,
			AllowedChannels:  bonding.Range{Low: 0, High: 1},
			PrimaryChannel:   0,
			CWMin:            15,
			StageMax:         5,
			DefaultTxPower:   1e9,
			MaxTxPower:       1e9,
			DefaultPD:        1e-3,
			MaxPDThreshold:   1,
			TxGain:           1,
			RxGain:           1,
			BondingPolicy:    bonding.OnlyPrimary,
			CentralFrequency: 2.4e9,
			BOLambda:         9e-6,
			Peer:             peer,
		}
		return node.New(rt, src, sys, cfg, phy.FreeSpaceModel{}, flatRateTable{bitsPerSymbol: 12000}, phy.FrameParams{SymbolTime: 80e-6}, 0)
	}
	nodes := []*node.Node{
		mk(0, 1, r3.Vector{X: 0, Y: 0, Z: 0}),
		mk(1, 0, r3.Vector{X: 1, Y: 0, Z: 0}),
	}
	for _, n := range nodes {
		rt.Register(n)
	}
	node.Wire(rt, nodes)
	return nodes
}

func TestDecentralizedAgentAppliesUpdatesOnItsPeriod(t *testing.T) {
	rt := engine.NewRuntime()
	src := rng.New(11)
	nodes := buildPair(rt, src)

	a := New(rt, src, simconfig.Agent{
		WLANCode:            "A",
		TimeBetweenRequests: 0.01,
		CandidateChannels:   []int{1},
	}, nodes)
	rt.Register(a)

	rt.Run(0.1)

	// ten periods fit in the run; the last re-arm lands past the stop time.
	assert.GreaterOrEqual(t, a.Updates, 9)
	assert.Equal(t, 1, nodes[0].PrimaryChannel())
	assert.Equal(t, 1, nodes[1].PrimaryChannel())
}

func TestCentralizedAgentWaitsForController(t *testing.T) {
	rt := engine.NewRuntime()
	src := rng.New(12)
	nodes := buildPair(rt, src)

	a := New(rt, src, simconfig.Agent{
		WLANCode:            "A",
		Centralized:         true,
		TimeBetweenRequests: 0.01,
		CandidateChannels:   []int{1},
	}, nodes)
	rt.Register(a)

	rt.Run(0.05)
	require.Zero(t, a.Updates, "a centralized agent must not self-drive")
}

func TestCentralControllerDrivesCentralizedAgents(t *testing.T) {
	rt := engine.NewRuntime()
	src := rng.New(13)
	nodes := buildPair(rt, src)

	a := New(rt, src, simconfig.Agent{
		WLANCode:            "A",
		Centralized:         true,
		TimeBetweenRequests: 0.01,
		CandidateChannels:   []int{1},
	}, nodes)
	cc := NewCentralController(rt, 0.01, []*Agent{a})
	rt.Register(a)
	rt.Register(cc)

	rt.Run(0.05)

	assert.GreaterOrEqual(t, a.Updates, 4)
	assert.Equal(t, 1, nodes[0].PrimaryChannel())
}

func TestEmptyCandidateSetsLeaveNodesUnchanged(t *testing.T) {
	rt := engine.NewRuntime()
	src := rng.New(14)
	nodes := buildPair(rt, src)

	a := New(rt, src, simconfig.Agent{WLANCode: "A", TimeBetweenRequests: 0.01}, nodes)
	rt.Register(a)

	rt.Run(0.05)

	assert.Greater(t, a.Updates, 0)
	assert.Equal(t, 0, nodes[0].PrimaryChannel())
}
