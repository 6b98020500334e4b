// Package node implements the CSMA/CA-with-RTS/CTS MAC state machine: one
// Node per wireless station, driven entirely by onStartTx/onFinishTx
// notifications from its peers and by its own timers, producing outgoing
// notifications and NACKs and updating the counters in internal/node's
// Counters. It is the one component that ties together internal/engine,
// internal/bonding, internal/channel, internal/loss, and internal/phy.
package node

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/doismellburning/komondor-go/internal/bonding"
	"github.com/doismellburning/komondor-go/internal/channel"
	"github.com/doismellburning/komondor-go/internal/engine"
	"github.com/doismellburning/komondor-go/internal/loss"
	"github.com/doismellburning/komondor-go/internal/phy"
	"github.com/doismellburning/komondor-go/internal/rng"
	"github.com/doismellburning/komondor-go/internal/simconfig"
)

const speedOfLight = 299792458.0

// State is one node's MAC state machine position.
type State int

const (
	Sensing State = iota
	TxRTS
	TxCTS
	TxData
	TxAck
	WaitCTS
	WaitData
	WaitAck
	RxRTS
	RxCTS
	RxData
	RxAck
	NAV
	// Sleep is reserved for a powered-down node; no transition in this
	// state machine enters it yet.
	Sleep
)

type peerView struct {
	Position r3.Vector
	TxGain   float64
	RxGain   float64
	BSSColor *int
}

// exchange tracks the packet a node is currently trying to deliver, across
// however many RTS/CTS/DATA/ACK attempts and retries it takes.
type exchange struct {
	peerID    int
	seq       uint64
	sentType  FrameType
	retries   int
	lastCause loss.Cause
	createdAt float64
}

// response is the frame a node owes its peer once the SIFS after a
// successful reception elapses.
type response struct {
	ft  FrameType
	dst int
	seq uint64
}

// inbound tracks one reception this node is (or was) actively receiving,
// from the addressed onStartTx through to its matching onFinishTx. expected
// records whether the node was in the state this frame type calls for when
// the frame started arriving; a frame that was never expected, or whose
// reception another start clobbered (collided), is judged a pure collision
// by the Loss Oracle.
type inbound struct {
	srcID       int
	frameType   FrameType
	seq         uint64
	navAtStart  bool
	navInterBSS bool
	expected    bool
	collided    bool
}

// Node is one wireless station: an access point or a station, depending on
// its simconfig.Node.Type. It implements engine.Component.
type Node struct {
	ID       int
	Position r3.Vector

	rt  *engine.Runtime
	src *rng.Source

	pathLoss phy.PathLossModel
	rates    phy.RateTable
	frame    phy.FrameParams
	sys      simconfig.System

	primaryChannel int
	allowed        bonding.Range
	policy         bonding.Policy
	pdThreshold    float64
	minPD, maxPD   float64
	txPower        float64
	defaultTxPower float64
	minTxPower     float64
	maxTxPower     float64
	txGain, rxGain float64
	mcs            phy.MCS
	wavelength     float64
	bssColor       *int
	srg            *int
	obssPDMin      float64
	obssPDDefault  float64
	obssPDMax      float64
	spatialReuse   bool
	lastOBSSPower  *float64
	peerID         int
	rtsCtsEnabled  bool
	boLambda       float64
	trafficLoad    float64

	cwMin, stageMax, cw int

	peers map[int]*peerView

	power        *channel.State
	navActive    bool
	navInterBSS  bool
	navTimer     *engine.Timer
	navEnteredAt float64

	state State

	backoffTimer     *engine.Timer
	backoffFrozen    bool
	backoffRemaining float64
	arrivalTimer     *engine.Timer

	txEndTimer  *engine.Timer
	waitTimer   *engine.Timer
	respTimer   *engine.Timer
	resp        response
	lastTxNotif Notification

	selected          bonding.Range
	nextSeq           uint64
	pending           *exchange
	reception         *inbound
	pendingCollisions []*inbound
	contribs          map[int][]float64

	OutStartTx  engine.OutPort[Notification]
	OutFinishTx engine.OutPort[Notification]
	OutNack     engine.OutPort[Nack]

	InStartTx  *engine.InPort[Notification]
	InFinishTx *engine.InPort[Notification]
	InNack     *engine.InPort[Nack]

	Counters *Counters
}

// New builds a Node from its static configuration. Peers must be added with
// AddPeer (or via Wire) and ports bound before the owning Runtime starts.
func New(rt *engine.Runtime, src *rng.Source, sys simconfig.System, cfg simconfig.Node, pathLoss phy.PathLossModel, rates phy.RateTable, frame phy.FrameParams, now float64) *Node {
	freq := cfg.CentralFrequency
	if freq <= 0 {
		freq = 1
	}
	n := &Node{
		ID:             cfg.ID,
		Position:       cfg.Position,
		rt:             rt,
		src:            src,
		pathLoss:       pathLoss,
		rates:          rates,
		frame:          frame,
		sys:            sys,
		primaryChannel: cfg.PrimaryChannel,
		allowed:        cfg.AllowedChannels,
		policy:         cfg.BondingPolicy,
		pdThreshold:    cfg.DefaultPD,
		minPD:          cfg.MinPDThreshold,
		maxPD:          cfg.MaxPDThreshold,
		txPower:        cfg.DefaultTxPower,
		defaultTxPower: cfg.DefaultTxPower,
		minTxPower:     cfg.MinTxPower,
		maxTxPower:     cfg.MaxTxPower,
		txGain:         cfg.TxGain,
		rxGain:         cfg.RxGain,
		mcs:            cfg.DefaultMCS,
		wavelength:     speedOfLight / freq,
		bssColor:       cfg.BSSColor,
		srg:            cfg.SRG,
		obssPDMin:      cfg.OBSSPDMin,
		obssPDDefault:  cfg.OBSSPDDefault,
		obssPDMax:      cfg.OBSSPDMax,
		spatialReuse:   cfg.SpatialReuse,
		peerID:         cfg.Peer,
		rtsCtsEnabled:  cfg.RTSCTSEnabled,
		boLambda:       cfg.BOLambda,
		trafficLoad:    cfg.TrafficLoad,
		cwMin:          cfg.CWMin,
		stageMax:       cfg.StageMax,
		peers:          make(map[int]*peerView),
		power:          channel.NewState(sys.Channels, now),
		contribs:       make(map[int][]float64),
		selected:       bonding.Range{Low: cfg.PrimaryChannel, High: cfg.PrimaryChannel},
		Counters:       newCounters(),
	}
	n.cw = n.cwMin
	n.InStartTx = engine.NewInPort(n.onStartTx)
	n.InFinishTx = engine.NewInPort(n.onFinishTx)
	n.InNack = engine.NewInPort(n.onNack)
	n.backoffTimer = engine.NewTimer(rt, n.onBackoffExpiry)
	n.txEndTimer = engine.NewTimer(rt, n.onTxEnd)
	n.waitTimer = engine.NewTimer(rt, n.onWaitTimeout)
	n.navTimer = engine.NewTimer(rt, n.onNAVEnd)
	n.arrivalTimer = engine.NewTimer(rt, n.onArrival)
	n.respTimer = engine.NewTimer(rt, n.onRespond)
	return n
}

// AddPeer registers another node's position and gains so this node can
// compute received power from it. Must be called before Run starts.
func (n *Node) AddPeer(id int, pos r3.Vector, txGain, rxGain float64, bssColor *int) {
	n.peers[id] = &peerView{Position: pos, TxGain: txGain, RxGain: rxGain, BSSColor: bssColor}
}

// Wire builds the full mesh of peer knowledge and port bindings the shared
// broadcast medium implies: every node senses every other node's
// transmissions.
func Wire(rt *engine.Runtime, nodes []*Node) {
	for _, a := range nodes {
		for _, b := range nodes {
			if a == b {
				continue
			}
			a.AddPeer(b.ID, b.Position, b.txGain, b.rxGain, b.bssColor)
			engine.Bind(rt, &a.OutStartTx, b.InStartTx)
			engine.Bind(rt, &a.OutFinishTx, b.InFinishTx)
			engine.Bind(rt, &a.OutNack, b.InNack)
		}
	}
}

// ApplyConfig is the configuration-update hook an external policy (an
// agent or a central controller) uses to change a node's primary channel,
// tx power, CCA threshold, or bonding policy between transmissions. Tx
// power and packet-detect threshold are clamped to the node's configured
// [min,max] range.
func (n *Node) ApplyConfig(update simconfig.NodeUpdate) {
	if update.PrimaryChannel != nil {
		n.primaryChannel = *update.PrimaryChannel
	}
	if update.TxPower != nil {
		v := clamp(*update.TxPower, n.minTxPower, n.maxTxPower)
		n.defaultTxPower = v
		n.txPower = v
	}
	if update.PacketDetectThreshold != nil {
		n.pdThreshold = clamp(*update.PacketDetectThreshold, n.minPD, n.maxPD)
	}
	if update.BondingPolicy != nil {
		n.policy = *update.BondingPolicy
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi > lo {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
	}
	return v
}

// Start implements engine.Component.
func (n *Node) Start(rt *engine.Runtime) {
	n.enterSensing(rt.Now())
}

// Stop implements engine.Component.
func (n *Node) Stop(*engine.Runtime) {}

// State returns the node's current MAC state, mostly for tests and tracing.
func (n *Node) State() State { return n.state }

// PrimaryChannel returns the node's current primary channel, which an
// external policy may have moved since construction via ApplyConfig.
func (n *Node) PrimaryChannel() int { return n.primaryChannel }

// enterSensing returns the node to SENSING and, if it has traffic of its
// own to contend for, arms a fresh backoff behind a DIFS. A node with no
// transmit peer (a pure receiver) stays in SENSING with no backoff armed.
func (n *Node) enterSensing(now engine.Time) {
	n.state = Sensing
	n.backoffFrozen = false
	n.backoffRemaining = 0
	if n.peerID < 0 {
		return
	}
	n.backoffTimer.Set(now + engine.Time(n.sys.DIFS+n.sampleBackoff()))
}

// onArrival fires when a sampled Poisson inter-arrival gap elapses; it
// begins sensing for the packet that gap was generated for.
func (n *Node) onArrival(now engine.Time) {
	n.enterSensing(now)
}

// startNextCycle begins the next packet cycle: immediately for a
// full-buffer traffic source, or after an exponentially-distributed
// inter-arrival gap scaled by the node's configured traffic_load for
// TrafficPoissonHighRate.
func (n *Node) startNextCycle(now engine.Time) {
	if n.sys.TrafficModel == simconfig.TrafficPoissonHighRate && n.trafficLoad > 0 {
		gap := n.src.ExpFloat64() / n.trafficLoad
		n.arrivalTimer.Set(now + engine.Time(gap))
		return
	}
	n.enterSensing(now)
}

// sampleBackoff draws the next backoff wait: the fixed configured value for
// a deterministic distribution, or an exponential sample whose mean is the
// current contention window's expected count of slot times.
func (n *Node) sampleBackoff() float64 {
	if n.sys.BackoffDistribution == simconfig.BackoffDeterministic {
		return n.boLambda
	}
	mean := float64(n.cw) / 2 * n.sys.SlotTime
	return n.src.ExpFloat64() * mean
}

func (n *Node) onBackoffExpiry(now engine.Time) {
	free := n.freeChannels(now)
	sel, ok, err := bonding.Select(n.policy, n.primaryChannel, n.allowed, free, n.pick)
	if err != nil {
		panic(fmt.Sprintf("node %d: %v", n.ID, err))
	}
	if !ok {
		n.enterSensing(now)
		return
	}
	if n.sys.CCA11axEnabled {
		sel = bonding.ClampToCCA11ax(sel, n.primaryChannel, n.channelPowerDBm, n.sys.CCATiers)
	}
	n.selected = sel
	n.applySpatialReuse()

	isNewPacket := n.pending == nil
	if isNewPacket {
		n.Counters.Sent++
		n.cw = n.cwMin
		seq := n.nextSeq
		n.nextSeq++
		n.pending = &exchange{peerID: n.peerID, seq: seq, createdAt: float64(now)}
	}

	ft := FrameData
	if n.rtsCtsEnabled {
		ft = FrameRTS
	}
	n.pending.sentType = ft
	n.beginTx(now, ft, n.pending.peerID, n.pending.seq)
}

func (n *Node) pick(k int) int { return n.src.Intn(k) }

// channelPowerDBm reports channel c's current aggregate received power in
// dBm, for the 802.11ax CCA tier comparisons in bonding.ClampToCCA11ax.
func (n *Node) channelPowerDBm(c int) float64 {
	return dbmFromPW(n.power.Power(c))
}

func (n *Node) freeChannels(now engine.Time) []bool {
	free := make([]bool, n.sys.Channels)
	for c := range free {
		isPrimary := c == n.primaryChannel
		free[c] = !n.power.IsBusy(float64(now), c, n.pdThreshold, isPrimary, n.sys.PIFSActivated, n.sys.PIFS)
	}
	return free
}

// applySpatialReuse implements the 802.11ax transmit-power curtailment
// rule: a node that recently sensed a below-OBSS-PD inter-BSS frame may
// transmit at a reduced power instead of its full default.
func (n *Node) applySpatialReuse() {
	n.txPower = n.defaultTxPower
	if !n.spatialReuse || n.lastOBSSPower == nil {
		return
	}
	currentOBSSPD := dbmFromPW(*n.lastOBSSPower)
	refPower := dbmFromPW(n.defaultTxPower)
	reduced := refPower - (currentOBSSPD - n.obssPDMin)
	n.txPower = pwFromDBm(math.Min(refPower, reduced))
	if n.txPower > n.maxTxPower {
		n.txPower = n.maxTxPower
	}
	n.lastOBSSPower = nil
}

func dbmFromPW(pw float64) float64 {
	if pw <= 0 {
		return -300
	}
	return 10 * math.Log10(pw*1e-9)
}

func pwFromDBm(dbm float64) float64 {
	return math.Pow(10, dbm/10) * 1e9
}

func (n *Node) beginTx(now engine.Time, ft FrameType, dstID int, seq uint64) {
	dur := n.frameDuration(ft)
	notif := Notification{
		SrcID:      n.ID,
		DstID:      dstID,
		Type:       ft,
		Channels:   n.selected,
		TxPowerPW:  n.txPower,
		NAV:        n.navFor(ft),
		MCS:        n.mcs,
		Seq:        seq,
		TxDuration: dur,
	}
	if n.bssColor != nil {
		notif.HasBSSColor = true
		notif.BSSColor = *n.bssColor
	}
	if n.srg != nil {
		notif.HasSRG = true
		notif.SRG = *n.srg
	}
	n.state = txStateFor(ft)
	n.lastTxNotif = notif
	n.Counters.AirTime += dur
	n.OutStartTx.Emit(now, notif)
	n.txEndTimer.Set(now + engine.Time(dur))
}

// dataLengthBits returns the payload length for the next DATA frame: the
// configured fixed length, or that length scaled by an exponentially
// distributed factor with mean 1 when tx_time_distribution is exponential.
func (n *Node) dataLengthBits() float64 {
	if n.sys.TxTimeDistribution == simconfig.BackoffDeterministic {
		return n.sys.FrameLengthBits
	}
	return n.sys.FrameLengthBits * n.src.ExpFloat64()
}

func (n *Node) frameDuration(ft FrameType) float64 {
	numCh := n.selected.Width()
	switch ft {
	case FrameRTS:
		return phy.Duration(n.frame, n.rates, n.mcs, numCh, 0, n.sys.RTSLengthBits, 1)
	case FrameCTS:
		return phy.Duration(n.frame, n.rates, n.mcs, numCh, 0, n.sys.CTSLengthBits, 1)
	case FrameData:
		agg := n.sys.AggregationCount
		if agg < 1 {
			agg = 1
		}
		return phy.Duration(n.frame, n.rates, n.mcs, numCh, 0, n.dataLengthBits(), agg)
	case FrameAck:
		return phy.Duration(n.frame, n.rates, n.mcs, numCh, 0, n.sys.AckLengthBits, 1)
	default:
		return 0
	}
}

// navFor returns the NAV duration a frame of type ft should announce: the
// time remaining in its exchange, so other nodes hold off until it's done.
func (n *Node) navFor(ft FrameType) float64 {
	switch ft {
	case FrameRTS:
		return n.sys.SIFS + n.frameDuration(FrameCTS) + n.sys.SIFS + n.frameDuration(FrameData) + n.sys.SIFS + n.frameDuration(FrameAck)
	case FrameCTS:
		return n.sys.SIFS + n.frameDuration(FrameData) + n.sys.SIFS + n.frameDuration(FrameAck)
	case FrameData:
		return n.sys.SIFS + n.frameDuration(FrameAck)
	default:
		return 0
	}
}

func (n *Node) onTxEnd(now engine.Time) {
	notif := n.lastTxNotif
	n.OutFinishTx.Emit(now, notif)

	switch notif.Type {
	case FrameRTS:
		n.state = WaitCTS
		n.waitTimer.Set(now + engine.Time(n.sys.SIFS+n.frameDuration(FrameCTS)+n.sys.SlotTime))
	case FrameCTS:
		n.state = WaitData
		n.waitTimer.Set(now + engine.Time(n.sys.SIFS+n.frameDuration(FrameData)+n.sys.SlotTime))
	case FrameData:
		n.state = WaitAck
		n.waitTimer.Set(now + engine.Time(n.sys.SIFS+n.frameDuration(FrameAck)+n.sys.SlotTime))
	case FrameAck:
		n.enterSensing(now)
	}
}

func (n *Node) onWaitTimeout(now engine.Time) {
	switch n.state {
	case WaitCTS, WaitData, WaitAck:
		n.handleTxFailure(now, loss.Timeout)
	}
}

func (n *Node) onNack(now engine.Time, msg Nack) {
	if msg.DstID != n.ID || n.pending == nil || n.pending.seq != msg.Seq {
		return
	}
	n.waitTimer.Cancel()
	n.handleTxFailure(now, msg.Cause)
}

// handleTxFailure applies the contention-window adaptation rule: double CW
// up to its stage-max cap and retry, or count the packet lost once the
// retry budget is exhausted.
func (n *Node) handleTxFailure(now engine.Time, cause loss.Cause) {
	if n.pending == nil {
		n.enterSensing(now)
		return
	}
	n.pending.retries++
	n.pending.lastCause = cause
	if n.pending.retries > n.stageMax {
		n.Counters.recordLoss(cause)
		n.pending = nil
		n.startNextCycle(now)
		return
	}
	if n.sys.CWAdaptation {
		n.cw *= 2
		if cap := n.cwMin << uint(n.stageMax); n.cw > cap {
			n.cw = cap
		}
	}
	n.enterSensing(now)
}

// onStartTx runs for every peer's transmission start, whether or not it is
// addressed to this node: the channel-power model and carrier sense must
// see every notification.
func (n *Node) onStartTx(now engine.Time, notif Notification) {
	if notif.SrcID == n.ID {
		return
	}
	peer := n.peers[notif.SrcID]
	if peer == nil {
		return
	}

	pr, err := n.pathLoss.ReceivedPower(phy.Distance(n.Position, peer.Position), notif.TxPowerPW, n.wavelength, peer.TxGain, n.rxGain)
	if err != nil {
		return
	}
	contrib := n.power.OnStart(float64(now), notif.SrcID, notif.Channels, pr, n.sys.AdjacentChannelModel, n.primaryChannel, n.pdThreshold)
	n.contribs[notif.SrcID] = contrib

	n.maybeTrackSpatialReuse(notif, pr)
	n.maybeSetNAV(now, notif, pr)
	n.maybeFreezeBackoff(now)

	if notif.DstID != n.ID {
		return
	}
	switch n.state {
	case TxRTS, TxCTS, TxData, TxAck:
		return
	}

	if n.reception != nil {
		n.reception.collided = true
		n.pendingCollisions = append(n.pendingCollisions, &inbound{
			srcID: notif.SrcID, frameType: notif.Type, seq: notif.Seq,
			navAtStart: n.navActive, navInterBSS: n.navInterBSS,
		})
		n.Counters.recordHiddenNode(notif.SrcID)
		return
	}

	if !n.receptionExpected(notif) {
		// An addressed frame the node's current state never asked for: it
		// never enters an RX state, so whatever the node was doing (a live
		// WAIT, NAV) carries on; the frame itself is judged — and NACKed —
		// at its finish.
		n.pendingCollisions = append(n.pendingCollisions, &inbound{
			srcID: notif.SrcID, frameType: notif.Type, seq: notif.Seq,
			navAtStart: n.navActive, navInterBSS: n.navInterBSS,
		})
		return
	}

	n.reception = &inbound{
		srcID: notif.SrcID, frameType: notif.Type, seq: notif.Seq,
		navAtStart: n.navActive, navInterBSS: n.navInterBSS, expected: true,
	}
	n.state = rxStateFor(notif.Type)
	if n.state == RxCTS || n.state == RxData || n.state == RxAck {
		n.waitTimer.Cancel()
	}
}

// receptionExpected reports whether the node's current state is the one a
// frame of this type is supposed to find it in: an RTS can open an
// exchange whenever the node is idle; a DATA can too when
// the RTS/CTS handshake is disabled; CTS and ACK must match a live WAIT for
// the same exchange.
func (n *Node) receptionExpected(notif Notification) bool {
	switch notif.Type {
	case FrameRTS:
		return n.state == Sensing || n.state == NAV
	case FrameCTS:
		return n.state == WaitCTS && n.pending != nil && n.pending.seq == notif.Seq
	case FrameData:
		return n.state == WaitData || n.state == Sensing || n.state == NAV
	case FrameAck:
		return n.state == WaitAck && n.pending != nil && n.pending.seq == notif.Seq
	default:
		return false
	}
}

// maybeTrackSpatialReuse records an inter-BSS frame sensed below the
// applicable OBSS-PD threshold as a spatial-reuse opportunity. A frame from
// a node in the same spatial-reuse group is compared against the more
// permissive maximum threshold; any other inter-BSS frame against the
// default.
func (n *Node) maybeTrackSpatialReuse(notif Notification, pr float64) {
	if !n.spatialReuse || n.bssColor == nil || !notif.HasBSSColor || notif.BSSColor == *n.bssColor {
		return
	}
	threshold := n.obssPDDefault
	if n.srg != nil && notif.HasSRG && notif.SRG == *n.srg && notif.SRG > 0 {
		threshold = n.obssPDMax
	}
	if dbmFromPW(pr) < dbmFromPW(threshold) {
		v := pr
		n.lastOBSSPower = &v
	}
}

// maybeSetNAV enters (or extends) NAV for a non-addressed frame on the
// primary channel, provided its received power pr reaches the packet-detect
// threshold; a frame this node cannot detect sets no NAV.
func (n *Node) maybeSetNAV(now engine.Time, notif Notification, pr float64) {
	if notif.NAV <= 0 || notif.DstID == n.ID || !notif.Channels.Contains(n.primaryChannel) {
		return
	}
	if pr < n.pdThreshold {
		return
	}
	until := engine.Time(float64(now) + notif.NAV)
	if n.navActive {
		if due, ok := n.navTimer.DueAt(); ok && until <= due {
			return
		}
	}
	if !n.navActive {
		n.navEnteredAt = float64(now)
	}
	n.navActive = true
	n.navInterBSS = n.bssColor != nil && notif.HasBSSColor && notif.BSSColor != *n.bssColor
	n.navTimer.Set(until)
	if n.state == Sensing {
		n.backoffTimer.Cancel()
		n.state = NAV
	}
}

func (n *Node) onNAVEnd(now engine.Time) {
	n.Counters.NAVTime += float64(now) - n.navEnteredAt
	n.navActive = false
	n.navInterBSS = false
	if n.state == NAV {
		n.enterSensing(now)
	}
}

// maybeFreezeBackoff implements the SENSING freeze rule: when the primary
// channel reads busy, stop the backoff countdown and remember what was
// left, to resume unchanged once the channel clears.
func (n *Node) maybeFreezeBackoff(now engine.Time) {
	if n.state != Sensing || !n.backoffTimer.Active() {
		return
	}
	if n.power.IsBusy(float64(now), n.primaryChannel, n.pdThreshold, true, n.sys.PIFSActivated, n.sys.PIFS) {
		due, _ := n.backoffTimer.DueAt()
		n.backoffFrozen = true
		n.backoffRemaining = float64(due) - float64(now)
		n.backoffTimer.Cancel()
	}
}

func (n *Node) maybeResumeBackoff(now engine.Time) {
	if n.state != Sensing || n.backoffTimer.Active() || !n.backoffFrozen {
		return
	}
	if n.power.IsBusy(float64(now), n.primaryChannel, n.pdThreshold, true, n.sys.PIFSActivated, n.sys.PIFS) {
		return
	}
	remaining := n.backoffRemaining
	if n.sys.BackoffType == simconfig.BackoffSlotted && n.sys.SlotTime > 0 {
		// slotted backoff only counts down at slot boundaries, so a frozen
		// partial slot resumes as a whole one.
		remaining = math.Ceil(remaining/n.sys.SlotTime) * n.sys.SlotTime
	}
	n.backoffFrozen = false
	n.backoffRemaining = 0
	n.backoffTimer.Set(now + engine.Time(n.sys.DIFS+remaining))
}

// onFinishTx runs for every peer's transmission end. If it completes a
// reception this node was tracking (as its primary expected frame, or as a
// collision that clobbered that frame), it asks the Loss Oracle for a
// verdict before reversing the channel-power contribution — order matters,
// since the oracle must see the power of interest as it stood at the
// reception instant, not after it's been subtracted back out.
func (n *Node) onFinishTx(now engine.Time, notif Notification) {
	if notif.SrcID == n.ID {
		return
	}
	contrib, tracked := n.contribs[notif.SrcID]
	if !tracked {
		return
	}

	var rx *inbound
	isPrimary := false
	stateMatches := false
	if n.reception != nil && n.reception.srcID == notif.SrcID && n.reception.seq == notif.Seq && n.reception.frameType == notif.Type {
		rx = n.reception
		isPrimary = true
		stateMatches = rx.expected && !rx.collided
	} else if pc := n.popPendingCollision(notif); pc != nil {
		rx = pc
	}

	var verdict loss.Verdict
	haveVerdict := rx != nil
	if haveVerdict {
		verdict = n.decide(notif, rx, stateMatches)
	}

	n.power.OnFinish(float64(now), notif.SrcID, contrib, n.pdThreshold)
	delete(n.contribs, notif.SrcID)
	n.maybeResumeBackoff(now)

	if !haveVerdict {
		return
	}

	// A CTS or ACK this node was itself waiting on is its own exchange
	// failing: that is retried locally, not NACKed back at the responder.
	respFailure := isPrimary && n.pending != nil && n.pending.seq == notif.Seq &&
		(notif.Type == FrameCTS || notif.Type == FrameAck)

	if !verdict.Success && !respFailure {
		// emitting from inside an input handler would be a re-entrant emit;
		// a same-instant event delivers the NACK in a fresh activation.
		msg := Nack{DstID: notif.SrcID, Seq: notif.Seq, Cause: verdict.Cause}
		n.rt.Schedule(now, func(at engine.Time) { n.OutNack.Emit(at, msg) })
	}
	if !isPrimary {
		return
	}

	n.reception = nil
	if !verdict.Success {
		if respFailure {
			n.handleTxFailure(now, verdict.Cause)
			return
		}
		if n.navActive {
			// the NAV that doomed this reception is still running; hold in
			// NAV until its timer expires rather than resuming contention.
			n.state = NAV
			return
		}
		n.enterSensing(now)
		return
	}

	switch notif.Type {
	case FrameRTS:
		n.scheduleResponse(now, FrameCTS, notif.SrcID, notif.Seq)
	case FrameCTS:
		n.scheduleResponse(now, FrameData, notif.SrcID, notif.Seq)
	case FrameData:
		n.scheduleResponse(now, FrameAck, notif.SrcID, notif.Seq)
	case FrameAck:
		if n.pending != nil {
			n.Counters.recordDelivery(float64(now) - n.pending.createdAt)
		}
		n.cw = n.cwMin
		n.pending = nil
		n.startNextCycle(now)
	}
}

// scheduleResponse arms the reply owed after a successful reception, one
// SIFS out. The node keeps its RX state across the gap; the actual emit
// happens in the timer's own activation, never inside the input handler that
// completed the reception.
func (n *Node) scheduleResponse(now engine.Time, ft FrameType, dst int, seq uint64) {
	n.resp = response{ft: ft, dst: dst, seq: seq}
	n.respTimer.Set(now + engine.Time(n.sys.SIFS))
}

func (n *Node) onRespond(now engine.Time) {
	n.beginTx(now, n.resp.ft, n.resp.dst, n.resp.seq)
}

func (n *Node) popPendingCollision(notif Notification) *inbound {
	for i, c := range n.pendingCollisions {
		if c.srcID == notif.SrcID && c.seq == notif.Seq && c.frameType == notif.Type {
			n.pendingCollisions = append(n.pendingCollisions[:i], n.pendingCollisions[i+1:]...)
			return c
		}
	}
	return nil
}

func (n *Node) decide(notif Notification, rx *inbound, stateMatches bool) loss.Verdict {
	interest := n.power.InterestPower(notif.SrcID)
	maxInt := n.power.MaxInterference(notif.SrcID, notif.Channels)
	sinr := n.power.SINR(notif.SrcID, n.sys.NoiseFloor, maxInt)

	in := loss.Input{
		PowerOfInterest:       interest,
		PacketDetectThreshold: n.pdThreshold,
		MaxInterference:       maxInt,
		SINR:                  sinr,
		CaptureModel:          n.sys.CaptureEffectModel,
		CaptureThreshold:      n.sys.CaptureEffectValue,
		MinSINR:               n.rates.MinSINR(notif.MCS),
		ReceiverInNAV:         rx.navAtStart,
		NAVInterBSS:           rx.navAtStart && rx.navInterBSS,
		ReceiverStateMatches:  stateMatches,
		ConstantPER:           n.sys.ConstantPER,
		RandomDraw:            n.src.Float64(),
	}
	return loss.Decide(in)
}

func txStateFor(ft FrameType) State {
	switch ft {
	case FrameRTS:
		return TxRTS
	case FrameCTS:
		return TxCTS
	case FrameData:
		return TxData
	case FrameAck:
		return TxAck
	default:
		return Sensing
	}
}

func rxStateFor(ft FrameType) State {
	switch ft {
	case FrameRTS:
		return RxRTS
	case FrameCTS:
		return RxCTS
	case FrameData:
		return RxData
	case FrameAck:
		return RxAck
	default:
		return Sensing
	}
}
