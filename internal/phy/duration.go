package phy

import "math"

// MCS indexes a modulation and coding scheme.
type MCS int

// RateTable supplies the per-MCS bits-per-OFDM-symbol, coding-rate, and
// minimum-SINR values Duration and the loss verdict consult. The concrete
// numbers are domain tables supplied by callers; StaticRateTable below is
// an illustrative stand-in, not an authoritative 802.11 reference.
type RateTable interface {
	BitsPerSymbol(mcs MCS, numChannels int) float64
	CodingRate(mcs MCS) float64
	// MinSINR is the lowest linear SINR at which a frame sent at mcs can
	// still be decoded; the capture-effect "model variant 2" loss rule
	// compares the measured SINR against it.
	MinSINR(mcs MCS) float64
}

// FrameParams are the fixed timing constants Duration needs beyond the
// rate table: preamble and signal-extension overhead, and OFDM symbol time.
type FrameParams struct {
	Preamble        float64
	SymbolTime      float64
	ExtensionSignal float64
}

// Duration computes a frame's airtime:
//
//	preamble + ceil((headerBits + payloadBits*nAggregated) /
//	  (bitsPerOfdmSymbol(mcs,numChannels) * codingRate(mcs))) * symbolTime
//	  + extensionSignal
func Duration(p FrameParams, table RateTable, mcs MCS, numChannels int, headerBits, payloadBits float64, nAggregated int) float64 {
	bitsPerSymbol := table.BitsPerSymbol(mcs, numChannels) * table.CodingRate(mcs)
	if bitsPerSymbol <= 0 {
		return p.Preamble + p.ExtensionSignal
	}
	totalBits := headerBits + payloadBits*float64(nAggregated)
	symbols := math.Ceil(totalBits / bitsPerSymbol)
	return p.Preamble + symbols*p.SymbolTime + p.ExtensionSignal
}

// StaticRateTable is a small illustrative MCS table covering indices 0-7.
type StaticRateTable struct{}

var staticBitsPerSymbol = [8]float64{26, 52, 78, 104, 156, 208, 234, 260}
var staticCodingRate = [8]float64{0.5, 0.5, 0.75, 0.5, 0.75, 0.67, 0.75, 0.83}

// staticMinSINR is in linear units: roughly 1 dB per MCS step above a ~2 dB
// floor for MCS 0.
var staticMinSINR = [8]float64{1.6, 2.0, 2.5, 3.2, 4.0, 5.0, 6.3, 7.9}

// BitsPerSymbol implements RateTable.
func (StaticRateTable) BitsPerSymbol(mcs MCS, numChannels int) float64 {
	return staticBitsPerSymbol[clampMCS(mcs)] * float64(numChannels)
}

// CodingRate implements RateTable.
func (StaticRateTable) CodingRate(mcs MCS) float64 {
	return staticCodingRate[clampMCS(mcs)]
}

// MinSINR implements RateTable.
func (StaticRateTable) MinSINR(mcs MCS) float64 {
	return staticMinSINR[clampMCS(mcs)]
}

func clampMCS(mcs MCS) int {
	idx := int(mcs)
	if idx < 0 {
		return 0
	}
	if idx > len(staticBitsPerSymbol)-1 {
		return len(staticBitsPerSymbol) - 1
	}
	return idx
}
