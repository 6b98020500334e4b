package phy

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeSpaceModelIsDeterministic(t *testing.T) {
	m := FreeSpaceModel{}
	a, err := m.ReceivedPower(10, 1e9, 0.125, 1, 1)
	require.NoError(t, err)
	b, err := m.ReceivedPower(10, 1e9, 0.125, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Greater(t, a, 0.0)
}

func TestFreeSpaceModelDecreasesWithDistance(t *testing.T) {
	m := FreeSpaceModel{}
	near, _ := m.ReceivedPower(1, 1e9, 0.125, 1, 1)
	far, _ := m.ReceivedPower(100, 1e9, 0.125, 1, 1)
	assert.Greater(t, near, far)
}

func TestUnimplementedModelReturnsNamedError(t *testing.T) {
	_, err := OkumuraHata.ReceivedPower(10, 1, 1, 1, 1)
	assert.True(t, errors.Is(err, ErrUnimplementedModel))
	assert.Contains(t, err.Error(), "okumura-hata")
}

func TestDistanceIsEuclidean(t *testing.T) {
	a := r3.Vector{X: 0, Y: 0, Z: 0}
	b := r3.Vector{X: 3, Y: 4, Z: 0}
	assert.Equal(t, 5.0, Distance(a, b))
}

func TestDurationGrowsWithPayload(t *testing.T) {
	params := FrameParams{Preamble: 20e-6, SymbolTime: 4e-6, ExtensionSignal: 6e-6}
	table := StaticRateTable{}

	small := Duration(params, table, 0, 1, 100, 1000, 1)
	large := Duration(params, table, 0, 1, 100, 12000, 1)
	assert.Greater(t, large, small)
}

func TestDurationAggregationMultipliesPayload(t *testing.T) {
	params := FrameParams{Preamble: 0, SymbolTime: 4e-6, ExtensionSignal: 0}
	table := StaticRateTable{}

	one := Duration(params, table, 4, 1, 0, 1000, 1)
	ten := Duration(params, table, 4, 1, 0, 1000, 10)
	assert.Greater(t, ten, one)
}
