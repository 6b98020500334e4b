// Package simconfig holds the configuration structs the simulator accepts
// (System/Node/Agent) plus YAML loading and validation. The simulation
// itself only ever sees the structs; how they reach the process is this
// package's concern alone.
package simconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/doismellburning/komondor-go/internal/bonding"
	"github.com/doismellburning/komondor-go/internal/channel"
	"github.com/doismellburning/komondor-go/internal/loss"
	"github.com/doismellburning/komondor-go/internal/phy"
)

// NodeType distinguishes an access point from a station.
type NodeType int

const (
	TypeAP NodeType = iota
	TypeSTA
)

// BackoffDistribution selects how backoff counters are sampled.
type BackoffDistribution int

const (
	BackoffExponential BackoffDistribution = iota
	BackoffDeterministic
)

// BackoffType selects whether the channel is sensed continuously or only at
// slot boundaries.
type BackoffType int

const (
	BackoffSlotted BackoffType = iota
	BackoffContinuous
)

// TrafficModel selects the node's traffic generator behaviour. The zero
// value is TrafficFullBuffer, and a full-buffer node is never turned into a
// Poisson one. A TrafficPoissonHighRate node whose traffic_load is not
// positive gets no arrival gap and contends back to back like a full-buffer
// node.
type TrafficModel int

const (
	TrafficFullBuffer TrafficModel = iota
	TrafficPoissonHighRate
)

// System holds the simulation-wide parameters.
type System struct {
	Channels              int                  `yaml:"channels"`
	BasicChannelBandwidth float64              `yaml:"basic_channel_bandwidth"`
	BackoffDistribution   BackoffDistribution  `yaml:"backoff_distribution"`
	TxTimeDistribution    BackoffDistribution  `yaml:"tx_time_distribution"`
	FrameLengthBits       float64              `yaml:"frame_length_bits"`
	AckLengthBits         float64              `yaml:"ack_length_bits"`
	RTSLengthBits         float64              `yaml:"rts_length_bits"`
	CTSLengthBits         float64              `yaml:"cts_length_bits"`
	AggregationCount      int                  `yaml:"aggregation_count"`
	PathLossModel         string               `yaml:"path_loss_model"`
	CaptureEffectValue    float64              `yaml:"capture_effect_value"`
	CaptureEffectModel    loss.CaptureModel    `yaml:"capture_effect_model"`
	NoiseFloor            float64              `yaml:"noise_floor"`
	AdjacentChannelModel  channel.LeakageModel `yaml:"adjacent_channel_model"`
	SIFS                  float64              `yaml:"sifs"`
	DIFS                  float64              `yaml:"difs"`
	PIFS                  float64              `yaml:"pifs"`
	PIFSActivated         bool                 `yaml:"pifs_activated"`
	SlotTime              float64              `yaml:"slot_time"`
	ConstantPER           float64              `yaml:"constant_per"`
	TrafficModel          TrafficModel         `yaml:"traffic_model"`
	BackoffType           BackoffType          `yaml:"backoff_type"`
	CWAdaptation          bool                 `yaml:"cw_adaptation"`
	Preamble              float64              `yaml:"preamble"`
	SymbolTime            float64              `yaml:"symbol_time"`
	ExtensionSignal       float64              `yaml:"extension_signal"`

	// CCA11axEnabled switches on the 802.11ax per-bandwidth CCA threshold
	// hierarchy (CCATiers) as an overlay on top of whichever channel-bonding
	// policy a node uses: a candidate block only widens past a given tier
	// while every channel it would add clears that tier's own threshold,
	// rather than the node's flat packet-detect threshold.
	CCA11axEnabled bool             `yaml:"cca_11ax_enabled"`
	CCATiers       bonding.CCATiers `yaml:"cca_tiers"`
}

// FrameParams extracts the phy.FrameParams fields embedded in System, so
// callers building a phy.Duration call site don't need to know the
// simconfig struct shape.
func (s System) FrameParams() phy.FrameParams {
	return phy.FrameParams{
		Preamble:        s.Preamble,
		SymbolTime:      s.SymbolTime,
		ExtensionSignal: s.ExtensionSignal,
	}
}

// PathLoss resolves the configured path-loss model id to a concrete
// phy.PathLossModel. Validate should be called first to guarantee id is
// known; PathLoss itself falls back to an UnimplementedModel for anything
// it doesn't recognise.
func (s System) PathLoss() phy.PathLossModel {
	switch s.PathLossModel {
	case "free-space":
		return phy.FreeSpaceModel{}
	case "okumura-hata":
		return phy.OkumuraHata
	case "indoor":
		return phy.IndoorModel
	case "tgn-residential":
		return phy.TGnResidential
	case "tgn-enterprise":
		return phy.TGnEnterprise
	case "tgn-outdoor":
		return phy.TGnOutdoor
	case "tmb":
		return phy.TMB
	default:
		return phy.UnimplementedModel{Name: s.PathLossModel}
	}
}

// Node holds one node's static configuration.
type Node struct {
	ID               int             `yaml:"id"`
	Type             NodeType        `yaml:"type"`
	Code             string          `yaml:"code"`
	WLANCode         string          `yaml:"wlan_code"`
	Position         r3.Vector       `yaml:"position"`
	AllowedChannels  bonding.Range   `yaml:"allowed_channels"`
	PrimaryChannel   int             `yaml:"primary_channel"`
	CWMin            int             `yaml:"cw_min"`
	StageMax         int             `yaml:"stage_max"`
	MinTxPower       float64         `yaml:"min_tx_power"`
	DefaultTxPower   float64         `yaml:"default_tx_power"`
	MaxTxPower       float64         `yaml:"max_tx_power"`
	MinPDThreshold   float64         `yaml:"min_pd_threshold"`
	DefaultPD        float64         `yaml:"default_pd_threshold"`
	MaxPDThreshold   float64         `yaml:"max_pd_threshold"`
	TxGain           float64         `yaml:"tx_gain"`
	RxGain           float64         `yaml:"rx_gain"`
	BondingPolicy    bonding.Policy  `yaml:"bonding_policy"`
	DefaultMCS       phy.MCS         `yaml:"default_mcs"`
	CentralFrequency float64         `yaml:"central_frequency"`
	BOLambda         float64         `yaml:"bo_lambda"`
	ProtocolVersion  int             `yaml:"protocol_version"`
	TrafficLoad      float64         `yaml:"traffic_load"`
	BSSColor         *int            `yaml:"bss_color,omitempty"`
	SRG              *int            `yaml:"srg,omitempty"`
	OBSSPDMin        float64         `yaml:"obss_pd_min"`
	OBSSPDDefault    float64         `yaml:"obss_pd_default"`
	OBSSPDMax        float64         `yaml:"obss_pd_max"`
	SpatialReuse     bool            `yaml:"spatial_reuse"`
	RTSCTSEnabled    bool            `yaml:"rts_cts_enabled"`
	// Peer is the node id this node exchanges DATA frames with, or -1 for
	// a pure receiver. A fixed peer is enough to exercise the MAC exchange
	// without inventing a routing layer.
	Peer int `yaml:"peer"`
}

// Agent holds one optional external policy's configuration.
type Agent struct {
	WLANCode                 string           `yaml:"wlan_code"`
	Centralized              bool             `yaml:"centralized"`
	TimeBetweenRequests      float64          `yaml:"time_between_requests"`
	CandidateChannels        []int            `yaml:"candidate_channels"`
	CandidateCCA             []float64        `yaml:"candidate_cca"`
	CandidateTxPower         []float64        `yaml:"candidate_tx_power"`
	CandidateBondingPolicies []bonding.Policy `yaml:"candidate_bonding_policies"`
}

// Scenario is the top-level value assembled from a YAML scenario file: the
// system parameters, every node, any agents, and how long to run.
type Scenario struct {
	System   System   `yaml:"system"`
	Nodes    []Node   `yaml:"nodes"`
	Agents   []Agent  `yaml:"agents"`
	StopTime float64  `yaml:"stop_time"`
}

// NodeUpdate is the configuration update an external policy (an agent, a
// central controller) pushes to a node between transmissions. Every field
// is optional; nil means "leave unchanged."
type NodeUpdate struct {
	PrimaryChannel        *int
	TxPower               *float64
	PacketDetectThreshold *float64
	BondingPolicy         *bonding.Policy
}

// Load reads and parses a YAML scenario file. It does not validate —
// callers should call Validate on the result before building a simulation.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("simconfig: reading %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("simconfig: parsing %s: %w", path, err)
	}
	return s, nil
}

// ExitCode enumerates the process exit codes.
type ExitCode int

const (
	ExitOK            ExitCode = 0
	ExitConfigInvalid ExitCode = 1
)

// ValidationError aggregates every configuration problem Validate finds,
// rather than stopping at the first one.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("simconfig: %d validation error(s): %s", len(v.Errors), strings.Join(v.Errors, "; "))
}

func (v *ValidationError) add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

var knownPathLossModels = map[string]bool{
	"free-space":       true,
	"okumura-hata":     true,
	"indoor":           true,
	"tgn-residential":  true,
	"tgn-enterprise":   true,
	"tgn-outdoor":      true,
	"tmb":              true,
}

// Validate checks a Scenario for the failures detectable before Run:
// unknown model id, primary channel outside the node's allowed range,
// duplicate node id, coincident positions, malformed agent candidates. It
// returns every failure found, not just the first.
func Validate(s Scenario) error {
	var verr ValidationError

	if !knownPathLossModels[s.System.PathLossModel] {
		verr.add("unknown path-loss model id %q", s.System.PathLossModel)
	}

	seenIDs := make(map[int]bool, len(s.Nodes))
	seenPositions := make(map[r3.Vector]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if seenIDs[n.ID] {
			verr.add("duplicate node id %d", n.ID)
		}
		seenIDs[n.ID] = true

		if seenPositions[n.Position] {
			verr.add("node %d: coincident with another node's position", n.ID)
		}
		seenPositions[n.Position] = true

		if n.AllowedChannels.Low < 0 || n.AllowedChannels.High >= s.System.Channels {
			verr.add("node %d: allowed channel range [%d,%d] outside system channel count %d",
				n.ID, n.AllowedChannels.Low, n.AllowedChannels.High, s.System.Channels)
			continue
		}
		if !n.AllowedChannels.Contains(n.PrimaryChannel) {
			verr.add("node %d: primary channel %d outside allowed range [%d,%d]",
				n.ID, n.PrimaryChannel, n.AllowedChannels.Low, n.AllowedChannels.High)
		}
	}

	for _, a := range s.Agents {
		if a.TimeBetweenRequests <= 0 {
			verr.add("agent %q: time_between_requests must be positive", a.WLANCode)
		}
		for _, c := range a.CandidateChannels {
			if c < 0 || c >= s.System.Channels {
				verr.add("agent %q: candidate channel %d outside system channel count %d",
					a.WLANCode, c, s.System.Channels)
			}
		}
		for _, p := range a.CandidateBondingPolicies {
			if p == bonding.AlwaysMaxLog2MCS {
				verr.add("agent %q: candidate bonding policy CB_ALWAYS_MAX_LOG2_MCS is deprecated", a.WLANCode)
			}
		}
	}

	if len(verr.Errors) > 0 {
		return &verr
	}
	return nil
}
