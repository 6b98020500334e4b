// Package channel implements the per-node aggregate channel-power model:
// the power vector the MAC tests for carrier sense, the set of in-flight
// neighbour transmissions SINR is computed from, and the adjacent-channel
// leakage that spreads a notification's power outside its own channel
// range.
package channel

import "github.com/doismellburning/komondor-go/internal/bonding"

// PowerFloor is the numeric-noise floor: per-channel power below this (in
// pW) is clamped to exactly 0.
const PowerFloor = 1e-6

// LeakageModel selects how a transmission's received power spreads onto
// channels outside its own [left,right] range.
type LeakageModel int

const (
	LeakageNone LeakageModel = iota
	LeakageBoundary
	LeakageExtreme
)

// State is one node's view of the shared medium: an aggregate power vector
// across every subchannel, the set of neighbours currently transmitting
// into this node's primary channel (for SINR attribution), and the last
// time each channel transitioned from busy to free (for PIFS).
type State struct {
	power     []float64
	freeSince []float64
	inflight  map[int]float64 // source node id -> power contributed, primary-overlapping only
}

// NewState returns a State with numChannels channels, all initially free.
func NewState(numChannels int, now float64) *State {
	freeSince := make([]float64, numChannels)
	for i := range freeSince {
		freeSince[i] = now
	}
	return &State{
		power:     make([]float64, numChannels),
		freeSince: freeSince,
		inflight:  make(map[int]float64),
	}
}

// Power returns the current aggregate power on channel c, in pW.
func (s *State) Power(c int) float64 { return s.power[c] }

// NumChannels returns the number of subchannels this State tracks.
func (s *State) NumChannels() int { return len(s.power) }

// TotalPower sums power across every channel; used by zero-sum invariant
// checks.
func (s *State) TotalPower() float64 {
	var total float64
	for _, p := range s.power {
		total += p
	}
	return total
}

// OnStart applies the start of a transmission from srcID, spreading pr (the
// received power at this node, in pW) across r per the leakage model, and
// returns the exact per-channel deltas applied. The caller must retain the
// returned slice and pass it to OnFinish unchanged — the finish side never
// recomputes the contribution, it only subtracts what was added, which is
// what keeps the zero-sum invariant exact regardless of the node's evolving
// power vector.
func (s *State) OnStart(now float64, srcID int, r bonding.Range, pr float64, leakage LeakageModel, primary int, pdThreshold float64) []float64 {
	contrib := Distribute(len(s.power), r, pr, leakage)
	for c, delta := range contrib {
		s.addDelta(now, c, delta, pdThreshold)
	}
	if r.Contains(primary) {
		s.inflight[srcID] = pr
	}
	return contrib
}

// OnFinish reverses a previously applied OnStart contribution exactly.
func (s *State) OnFinish(now float64, srcID int, contrib []float64, pdThreshold float64) {
	for c, delta := range contrib {
		s.addDelta(now, c, -delta, pdThreshold)
	}
	delete(s.inflight, srcID)
}

func (s *State) addDelta(now float64, c int, delta float64, pdThreshold float64) {
	wasBusy := s.power[c] >= pdThreshold
	s.power[c] += delta
	if s.power[c] < PowerFloor {
		s.power[c] = 0
	}
	isBusy := s.power[c] >= pdThreshold
	if wasBusy && !isBusy {
		s.freeSince[c] = now
	}
}

// IsBusy reports whether channel c currently blocks transmission. A channel
// above pdThreshold is always busy. When PIFS is enabled and c is not the
// node's primary channel, a channel that dropped below threshold less than
// pifs ago is also still treated as busy.
func (s *State) IsBusy(now float64, c int, pdThreshold float64, isPrimary bool, pifsEnabled bool, pifs float64) bool {
	if s.power[c] >= pdThreshold {
		return true
	}
	if pifsEnabled && !isPrimary {
		return now-s.freeSince[c] < pifs
	}
	return false
}

// MaxInterference returns the maximum, over c in r, of P[c] minus the
// power contributed by sourceOfInterest — the source of interest is
// subtracted so the remainder is pure interference.
func (s *State) MaxInterference(sourceOfInterest int, r bonding.Range) float64 {
	interest := s.inflight[sourceOfInterest]
	var max float64
	for c := r.Low; c <= r.High; c++ {
		if c < 0 || c >= len(s.power) {
			continue
		}
		v := s.power[c] - interest
		if v > max {
			max = v
		}
	}
	return max
}

// SINR computes the signal to interference-plus-noise ratio for the given
// source of interest.
func (s *State) SINR(sourceOfInterest int, noiseFloor, maxInterference float64) float64 {
	return s.inflight[sourceOfInterest] / (noiseFloor + maxInterference)
}

// InterestPower returns the power currently attributed to sourceOfInterest.
func (s *State) InterestPower(sourceOfInterest int) float64 {
	return s.inflight[sourceOfInterest]
}

// Distribute computes the per-channel power contributions of a single
// notification at received power pr across channel range r, per the
// adjacent-channel leakage model. The returned slice has length numChannels;
// entries below PowerFloor are clamped to 0.
func Distribute(numChannels int, r bonding.Range, pr float64, leakage LeakageModel) []float64 {
	out := make([]float64, numChannels)
	for c := r.Low; c <= r.High; c++ {
		if c >= 0 && c < numChannels {
			out[c] = pr
		}
	}

	switch leakage {
	case LeakageNone:
		// only in-range channels receive anything.
	case LeakageBoundary:
		for c := 0; c < numChannels; c++ {
			if r.Contains(c) {
				continue
			}
			out[c] = pr * attenuation(distanceFromRange(c, r))
		}
	case LeakageExtreme:
		for c := 0; c < numChannels; c++ {
			if r.Contains(c) {
				continue
			}
			var sum float64
			for ci := r.Low; ci <= r.High; ci++ {
				sum += pr * attenuation(abs(c-ci))
			}
			out[c] = sum
		}
	}

	for c := range out {
		if out[c] < PowerFloor {
			out[c] = 0
		}
	}
	return out
}

// attenuation converts a 20-dB-per-channel leakage rule into a linear
// multiplier: 20 dB of loss is a factor of 100, so each channel of distance
// multiplies by 10^-2.
func attenuation(distanceChannels int) float64 {
	factor := 1.0
	for i := 0; i < distanceChannels; i++ {
		factor /= 100
	}
	return factor
}

func distanceFromRange(c int, r bonding.Range) int {
	if c < r.Low {
		return r.Low - c
	}
	return c - r.High
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
