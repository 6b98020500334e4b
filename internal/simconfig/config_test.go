package simconfig

import (
	"os"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/komondor-go/internal/bonding"
)

const validYAML = `
system:
  channels: 4
  path_loss_model: free-space
nodes:
  - id: 0
    type: 0
    position: {x: 0, y: 0, z: 0}
    allowed_channels: {low: 0, high: 3}
    primary_channel: 0
  - id: 1
    type: 1
    position: {x: 10, y: 0, z: 0}
    allowed_channels: {low: 0, high: 3}
    primary_channel: 0
stop_time: 10
`

func TestLoadParsesScenario(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/scenario.yaml"
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, s.System.Channels)
	assert.Len(t, s.Nodes, 2)
	assert.Equal(t, 10.0, s.Nodes[1].Position.X)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/scenario.yaml")
	assert.Error(t, err)
}

func TestValidateAcceptsValidScenario(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/scenario.yaml"
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))
	s, err := Load(path)
	require.NoError(t, err)
	assert.NoError(t, Validate(s))
}

func TestValidateRejectsUnknownModel(t *testing.T) {
	s := Scenario{System: System{Channels: 4, PathLossModel: "made-up"}}
	err := Validate(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown path-loss model")
}

func TestValidateRejectsPrimaryOutsideAllowed(t *testing.T) {
	s := Scenario{
		System: System{Channels: 4, PathLossModel: "free-space"},
		Nodes: []Node{
			{ID: 0, AllowedChannels: bonding.Range{Low: 0, High: 1}, PrimaryChannel: 2},
		},
	}
	err := Validate(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside allowed range")
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	s := Scenario{
		System: System{Channels: 4, PathLossModel: "free-space"},
		Nodes: []Node{
			{ID: 0, AllowedChannels: bonding.Range{Low: 0, High: 1}, PrimaryChannel: 0},
			{ID: 0, AllowedChannels: bonding.Range{Low: 0, High: 1}, PrimaryChannel: 0, Position: r3.Vector{X: 1}},
		},
	}
	err := Validate(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestValidateRejectsCoincidentPositions(t *testing.T) {
	s := Scenario{
		System: System{Channels: 4, PathLossModel: "free-space"},
		Nodes: []Node{
			{ID: 0, AllowedChannels: bonding.Range{Low: 0, High: 1}, PrimaryChannel: 0},
			{ID: 1, AllowedChannels: bonding.Range{Low: 0, High: 1}, PrimaryChannel: 0},
		},
	}
	err := Validate(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coincident")
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	s := Scenario{
		System: System{Channels: 4, PathLossModel: "made-up"},
		Nodes: []Node{
			{ID: 0, AllowedChannels: bonding.Range{Low: 0, High: 1}, PrimaryChannel: 5},
		},
	}
	verr, ok := Validate(s).(*ValidationError)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(verr.Errors), 2)
}

func TestValidateRejectsBadAgentConfig(t *testing.T) {
	s := Scenario{
		System: System{Channels: 4, PathLossModel: "free-space"},
		Nodes: []Node{
			{ID: 0, WLANCode: "A", AllowedChannels: bonding.Range{Low: 0, High: 3}, PrimaryChannel: 0},
		},
		Agents: []Agent{
			{WLANCode: "A", TimeBetweenRequests: 0, CandidateChannels: []int{7}},
			{WLANCode: "B", TimeBetweenRequests: 1, CandidateBondingPolicies: []bonding.Policy{bonding.AlwaysMaxLog2MCS}},
		},
	}
	verr, ok := Validate(s).(*ValidationError)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(verr.Errors), 3)
}
