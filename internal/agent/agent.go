// Package agent implements the policy side of the node configuration-update
// interface: a timer-driven Agent that periodically picks new values from
// its configured candidate sets and pushes them to the nodes of its WLAN
// through Node.ApplyConfig, plus a CentralController that drives every
// centralized agent on one shared clock. The learning logic a real policy
// would put behind the pick lives outside this module; this package fixes
// the where and when an external policy touches the simulation.
package agent

import (
	"github.com/doismellburning/komondor-go/internal/engine"
	"github.com/doismellburning/komondor-go/internal/node"
	"github.com/doismellburning/komondor-go/internal/rng"
	"github.com/doismellburning/komondor-go/internal/simconfig"
)

// Agent drives the nodes of one WLAN. A decentralized agent re-arms its own
// timer every TimeBetweenRequests; a centralized one stays quiet until a
// CentralController asks it to act. It implements engine.Component.
type Agent struct {
	cfg   simconfig.Agent
	src   *rng.Source
	nodes []*node.Node
	timer *engine.Timer

	// Updates counts configuration pushes made so far, for tracing.
	Updates int
}

// New builds an Agent over the nodes sharing its WLAN code. The caller is
// responsible for matching nodes to cfg.WLANCode; the agent applies every
// update to all of them.
func New(rt *engine.Runtime, src *rng.Source, cfg simconfig.Agent, nodes []*node.Node) *Agent {
	a := &Agent{cfg: cfg, src: src, nodes: nodes}
	a.timer = engine.NewTimer(rt, a.onRequest)
	return a
}

// Start implements engine.Component.
func (a *Agent) Start(rt *engine.Runtime) {
	if a.cfg.Centralized || a.cfg.TimeBetweenRequests <= 0 || len(a.nodes) == 0 {
		return
	}
	a.timer.Set(rt.Now() + engine.Time(a.cfg.TimeBetweenRequests))
}

// Stop implements engine.Component.
func (a *Agent) Stop(*engine.Runtime) {}

func (a *Agent) onRequest(now engine.Time) {
	a.applyOnce()
	a.timer.Set(now + engine.Time(a.cfg.TimeBetweenRequests))
}

// applyOnce samples one update from the candidate sets and pushes it to
// every node in the agent's WLAN.
func (a *Agent) applyOnce() {
	update := a.sampleUpdate()
	for _, n := range a.nodes {
		n.ApplyConfig(update)
	}
	a.Updates++
}

// sampleUpdate draws uniformly from each non-empty candidate set. An empty
// set leaves the corresponding field nil, which ApplyConfig treats as
// "unchanged".
func (a *Agent) sampleUpdate() simconfig.NodeUpdate {
	var u simconfig.NodeUpdate
	if len(a.cfg.CandidateChannels) > 0 {
		v := a.cfg.CandidateChannels[a.src.Intn(len(a.cfg.CandidateChannels))]
		u.PrimaryChannel = &v
	}
	if len(a.cfg.CandidateCCA) > 0 {
		v := a.cfg.CandidateCCA[a.src.Intn(len(a.cfg.CandidateCCA))]
		u.PacketDetectThreshold = &v
	}
	if len(a.cfg.CandidateTxPower) > 0 {
		v := a.cfg.CandidateTxPower[a.src.Intn(len(a.cfg.CandidateTxPower))]
		u.TxPower = &v
	}
	if len(a.cfg.CandidateBondingPolicies) > 0 {
		v := a.cfg.CandidateBondingPolicies[a.src.Intn(len(a.cfg.CandidateBondingPolicies))]
		u.BondingPolicy = &v
	}
	return u
}

// CentralController polls every centralized agent on one shared period.
// Whatever decision logic sits behind a real controller, the simulation's
// job ends at dispatching the configuration updates. It implements
// engine.Component.
type CentralController struct {
	period float64
	agents []*Agent
	timer  *engine.Timer
}

// NewCentralController builds a controller ticking every period seconds.
func NewCentralController(rt *engine.Runtime, period float64, agents []*Agent) *CentralController {
	c := &CentralController{period: period, agents: agents}
	c.timer = engine.NewTimer(rt, c.onTick)
	return c
}

// Start implements engine.Component.
func (c *CentralController) Start(rt *engine.Runtime) {
	if c.period <= 0 || len(c.agents) == 0 {
		return
	}
	c.timer.Set(rt.Now() + engine.Time(c.period))
}

// Stop implements engine.Component.
func (c *CentralController) Stop(*engine.Runtime) {}

func (c *CentralController) onTick(now engine.Time) {
	for _, a := range c.agents {
		a.applyOnce()
	}
	c.timer.Set(now + engine.Time(c.period))
}
