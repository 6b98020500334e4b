// Package bonding computes the contiguous set of channels a node selects
// for a transmission, given its primary channel, its allowed channel range,
// and which channels currently read as free. It is pure: no clock, no RNG
// state of its own — callers needing a random choice (PROB_UNIFORM_LOG2)
// pass in a pick function.
package bonding

import "errors"

// ErrDeprecatedPolicy is returned for CB_ALWAYS_MAX_LOG2_MCS, a deprecated
// policy with no defined behaviour. Select refuses it outright rather than
// guessing.
var ErrDeprecatedPolicy = errors.New("bonding: CB_ALWAYS_MAX_LOG2_MCS is deprecated and unimplemented")

// Policy is a channel-bonding strategy.
type Policy int

const (
	OnlyPrimary Policy = iota
	Static
	StaticLog2
	Dynamic
	DynamicLog2
	ProbUniformLog2
	AlwaysMaxLog2MCS // deprecated: Select always fails with ErrDeprecatedPolicy
)

// Range is an inclusive, contiguous channel range.
type Range struct {
	Low, High int
}

// Width returns the number of channels spanned by r.
func (r Range) Width() int { return r.High - r.Low + 1 }

// Contains reports whether c falls within r.
func (r Range) Contains(c int) bool { return c >= r.Low && c <= r.High }

// within reports whether r is fully contained in other.
func (r Range) within(other Range) bool {
	return r.Low >= other.Low && r.High <= other.High
}

// Select computes the transmit channel range for policy, given the node's
// primary channel, its allowed [min,max] range, and free, a slice indexed
// by channel number where free[c] is true iff channel c currently reads
// idle. pick(n) must return a value in [0,n) and is consulted only by
// ProbUniformLog2; pass nil for every other policy.
//
// ok is false when the policy finds no legal non-empty range — the
// caller's contract is to sample a fresh backoff and retry rather than
// transmit.
func Select(policy Policy, primary int, allowed Range, free []bool, pick func(n int) int) (Range, bool, error) {
	if !allowed.Contains(primary) {
		return Range{}, false, nil
	}

	switch policy {
	case OnlyPrimary:
		return onlyPrimary(primary, free)
	case Static:
		return static(allowed, free)
	case StaticLog2, DynamicLog2:
		// Both ask for the widest fully-free log2-aligned block containing
		// the primary; they differ only in whether the choice persists
		// across transmissions, a stateful concern this pure function
		// doesn't model. Both resolve to the same selection here — see
		// DESIGN.md.
		return widestLog2Block(primary, allowed, free)
	case Dynamic:
		return dynamic(primary, allowed, free)
	case ProbUniformLog2:
		return probUniformLog2(primary, allowed, free, pick)
	case AlwaysMaxLog2MCS:
		return Range{}, false, ErrDeprecatedPolicy
	default:
		return Range{}, false, nil
	}
}

func onlyPrimary(primary int, free []bool) (Range, bool, error) {
	if !free[primary] {
		return Range{}, false, nil
	}
	return Range{Low: primary, High: primary}, true, nil
}

func static(allowed Range, free []bool) (Range, bool, error) {
	if !allFree(free, allowed) {
		return Range{}, false, nil
	}
	return allowed, true, nil
}

func dynamic(primary int, allowed Range, free []bool) (Range, bool, error) {
	if !free[primary] {
		return Range{}, false, nil
	}
	lo, hi := primary, primary
	for lo-1 >= allowed.Low && free[lo-1] {
		lo--
	}
	for hi+1 <= allowed.High && free[hi+1] {
		hi++
	}
	return Range{Low: lo, High: hi}, true, nil
}

// logAlignedBlock returns the width-w block containing primary, aligned to
// global multiples of w (the usual 802.11 channelization convention).
func logAlignedBlock(primary, w int) Range {
	start := (primary / w) * w
	return Range{Low: start, High: start + w - 1}
}

// log2Candidates enumerates every block (starting at width 1, doubling)
// containing primary that lies fully within allowed and is fully free. Each
// larger width's block is a superset of the previous, so the sequence stops
// at the first width that is either out of bounds or not fully free.
func log2Candidates(primary int, allowed Range, free []bool) []Range {
	var candidates []Range
	if !free[primary] {
		return candidates
	}
	candidates = append(candidates, Range{Low: primary, High: primary})

	for w := 2; ; w *= 2 {
		block := logAlignedBlock(primary, w)
		if !block.within(allowed) {
			break
		}
		if !allFree(free, block) {
			break
		}
		candidates = append(candidates, block)
	}
	return candidates
}

func widestLog2Block(primary int, allowed Range, free []bool) (Range, bool, error) {
	candidates := log2Candidates(primary, allowed, free)
	if len(candidates) == 0 {
		return Range{}, false, nil
	}
	return candidates[len(candidates)-1], true, nil
}

func probUniformLog2(primary int, allowed Range, free []bool, pick func(n int) int) (Range, bool, error) {
	candidates := log2Candidates(primary, allowed, free)
	if len(candidates) == 0 {
		return Range{}, false, nil
	}
	if pick == nil {
		return candidates[len(candidates)-1], true, nil
	}
	return candidates[pick(len(candidates))], true, nil
}

func allFree(free []bool, r Range) bool {
	for c := r.Low; c <= r.High; c++ {
		if c < 0 || c >= len(free) || !free[c] {
			return false
		}
	}
	return true
}

// CCATiers holds the 802.11ax per-bandwidth CCA thresholds, in dBm: the
// primary channel's own 20 MHz uses Primary20; the 20
// MHz channel that pairs with it into a 40 MHz block uses Secondary20; the
// 40 MHz half that pairs the primary's 40 MHz block into an 80 MHz block
// uses Secondary40; and the 80 MHz half pairing into a 160 MHz block uses
// Secondary80.
type CCATiers struct {
	Primary20   float64
	Secondary20 float64
	Secondary40 float64
	Secondary80 float64
}

// ClampToCCA11ax shrinks candidate to the widest log2-aligned, primary-
// containing sub-block that clears every tier's CCA threshold on the way
// up: a block widens only while every channel the wider block would add
// satisfies that tier's own threshold. powerDBm reports a channel's
// current received power in dBm. Widening stops, and the last block that
// cleared its tier is returned, at the first tier whose newly added half
// fails its threshold — each doubling step is tested independently rather
// than recomputing every tier from scratch.
func ClampToCCA11ax(candidate Range, primary int, powerDBm func(c int) float64, tiers CCATiers) Range {
	best := Range{Low: primary, High: primary}
	if powerDBm(primary) > tiers.Primary20 {
		return best
	}

	secondaryThresholds := []float64{tiers.Secondary20, tiers.Secondary40, tiers.Secondary80}
	for i, w := 0, 2; w <= candidate.Width() && i < len(secondaryThresholds); i, w = i+1, w*2 {
		block := logAlignedBlock(primary, w)
		if !block.within(candidate) {
			break
		}

		half := w / 2
		var lo, hi int
		if primary < block.Low+half {
			lo, hi = block.Low+half, block.High
		} else {
			lo, hi = block.Low, block.Low+half-1
		}

		clears := true
		for c := lo; c <= hi; c++ {
			if powerDBm(c) > secondaryThresholds[i] {
				clears = false
				break
			}
		}
		if !clears {
			break
		}
		best = block
	}
	return best
}
