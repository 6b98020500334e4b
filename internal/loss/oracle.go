// Package loss implements the Loss & Interference Oracle: given a completed
// reception attempt, it decides whether the frame survives and, if not,
// classifies why. It has no side effects — the caller decides whether to
// emit a NACK based on the returned cause.
package loss

// Cause is a stable reason code for a lost frame, suitable for statistics
// aggregation across runs.
type Cause int

const (
	// None means the frame was decoded successfully.
	None Cause = iota
	BelowSensitivity
	SINR
	NAVCollision
	InterBSSNAVCollision
	PureCollision
	PER
	// Timeout is not produced by Decide — it is a MAC-level cause recorded
	// by the caller when an expected reply never arrives at all.
	Timeout
)

func (c Cause) String() string {
	switch c {
	case None:
		return "none"
	case BelowSensitivity:
		return "below-sensitivity"
	case SINR:
		return "sinr"
	case NAVCollision:
		return "nav-collision"
	case InterBSSNAVCollision:
		return "inter-bss-nav-collision"
	case PureCollision:
		return "pure-collision"
	case PER:
		return "per"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// CaptureModel selects which capture-effect rule step 2 of the decision
// order applies.
type CaptureModel int

const (
	// CaptureByInterferenceThreshold fails the frame when MaxInterference
	// exceeds CaptureThreshold ("model variant 1").
	CaptureByInterferenceThreshold CaptureModel = iota
	// CaptureBySINRFloor fails the frame when SINR is below the MCS's
	// minimum ("model variant 2").
	CaptureBySINRFloor
)

// Verdict is the oracle's decision for one reception attempt.
type Verdict struct {
	Success bool
	Cause   Cause
}

// Input bundles everything the decision order needs. All
// fields describe the state of the receiver and the channel at the instant
// reception completes; the caller (internal/node) is responsible for
// sampling RandomDraw from the shared internal/rng source exactly once per
// attempt, preserving backoff/draw reproducibility across runs.
type Input struct {
	PowerOfInterest       float64
	PacketDetectThreshold float64

	MaxInterference  float64
	SINR             float64
	CaptureModel     CaptureModel
	CaptureThreshold float64
	MinSINR          float64

	ReceiverInNAV bool
	// NAVInterBSS is set when the notification that put the receiver in NAV
	// carried a BSS color different from the receiver's own — the NAV
	// origin's color decides the subtype, not the arriving frame's.
	NAVInterBSS          bool
	ReceiverStateMatches bool // true iff the receiver was in exactly the state this notification's type expects

	ConstantPER float64
	RandomDraw  float64
}

// Decide applies the first-match-wins decision order: below-sensitivity,
// capture/SINR, NAV, wrong-state collision, constant PER.
func Decide(in Input) Verdict {
	if in.PowerOfInterest < in.PacketDetectThreshold {
		return Verdict{Success: false, Cause: BelowSensitivity}
	}

	captureFailed := false
	switch in.CaptureModel {
	case CaptureByInterferenceThreshold:
		captureFailed = in.MaxInterference > in.CaptureThreshold
	case CaptureBySINRFloor:
		captureFailed = in.SINR < in.MinSINR
	}
	if captureFailed {
		return Verdict{Success: false, Cause: SINR}
	}

	if in.ReceiverInNAV {
		if in.NAVInterBSS {
			return Verdict{Success: false, Cause: InterBSSNAVCollision}
		}
		return Verdict{Success: false, Cause: NAVCollision}
	}

	if !in.ReceiverStateMatches {
		return Verdict{Success: false, Cause: PureCollision}
	}

	if in.RandomDraw < in.ConstantPER {
		return Verdict{Success: false, Cause: PER}
	}

	return Verdict{Success: true, Cause: None}
}
