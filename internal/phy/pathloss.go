// Package phy fixes the call sites for physical-layer numerics: path-loss
// models, frame duration, and per-MCS bits/symbol and coding-rate tables.
// Only one concrete, closed-form model (free space) is implemented; the
// rest are named stubs whose calibrated Okumura-Hata/TGn/TMB formulas live
// with the domain tables that supply them, so the dispatch shape stays
// deterministic given (d, Pt, lambda, txGain, rxGain, model).
package phy

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// ErrUnimplementedModel is returned by path-loss models whose formula this
// repository does not implement.
var ErrUnimplementedModel = errors.New("phy: path-loss model has no formula in this build")

// PathLossModel computes received power in pW given transmit power in pW,
// distance in metres, wavelength in metres, and linear tx/rx antenna gains.
type PathLossModel interface {
	ReceivedPower(d, pt, lambda, txGain, rxGain float64) (float64, error)
}

// FreeSpaceModel implements the Friis free-space path-loss equation.
type FreeSpaceModel struct{}

// ReceivedPower implements PathLossModel.
func (FreeSpaceModel) ReceivedPower(d, pt, lambda, txGain, rxGain float64) (float64, error) {
	if d <= 0 {
		d = 1 // Friis is singular at d=0; floor to 1m like near-field handling elsewhere in the corpus.
	}
	factor := lambda / (4 * math.Pi * d)
	return pt * txGain * rxGain * factor * factor, nil
}

// UnimplementedModel is a named placeholder for a path-loss model this
// repository doesn't carry a formula for.
type UnimplementedModel struct {
	Name string
}

// ReceivedPower implements PathLossModel by always failing.
func (u UnimplementedModel) ReceivedPower(float64, float64, float64, float64, float64) (float64, error) {
	return 0, fmt.Errorf("%w: %s", ErrUnimplementedModel, u.Name)
}

var (
	OkumuraHata        = UnimplementedModel{Name: "okumura-hata"}
	IndoorModel        = UnimplementedModel{Name: "indoor"}
	TGnResidential     = UnimplementedModel{Name: "tgn-b-residential"}
	TGnEnterprise      = UnimplementedModel{Name: "tgn-d-enterprise"}
	TGnOutdoor         = UnimplementedModel{Name: "tgn-e-outdoor"}
	TMB                = UnimplementedModel{Name: "tmb"}
)

// Distance returns the Euclidean distance, in the same units as a and b,
// between two node positions.
func Distance(a, b r3.Vector) float64 {
	return a.Sub(b).Norm()
}
