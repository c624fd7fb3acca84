// MIT License
//
// Copyright (c) 2023-2026 PVArchive Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStateTransitions(t *testing.T) {
	assert.True(t, StateRequested.CanTransitionTo(StatePolicyComputed))
	assert.True(t, StatePolicyComputed.CanTransitionTo(StateOwnerAssigned))
	assert.True(t, StateOwnerAssigned.CanTransitionTo(StateConfirmed))

	// stages cannot be skipped or reversed
	assert.False(t, StateRequested.CanTransitionTo(StateOwnerAssigned))
	assert.False(t, StateRequested.CanTransitionTo(StateConfirmed))
	assert.False(t, StateOwnerAssigned.CanTransitionTo(StateRequested))

	// abort is reachable from any non-terminal stage
	assert.True(t, StateRequested.CanTransitionTo(StateAborted))
	assert.True(t, StatePolicyComputed.CanTransitionTo(StateAborted))
	assert.True(t, StateOwnerAssigned.CanTransitionTo(StateAborted))

	// terminals are terminal
	assert.False(t, StateConfirmed.CanTransitionTo(StateAborted))
	assert.False(t, StateAborted.CanTransitionTo(StateRequested))
	assert.True(t, StateConfirmed.Terminal())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateOwnerAssigned.Terminal())
}

func TestWorkflowStateJSONUsesNames(t *testing.T) {
	data, err := json.Marshal(StateOwnerAssigned)
	require.NoError(t, err)
	assert.Equal(t, `"OWNER_ASSIGNED"`, string(data))

	var state WorkflowState
	require.NoError(t, json.Unmarshal([]byte(`"POLICY_COMPUTED"`), &state))
	assert.Equal(t, StatePolicyComputed, state)

	require.Error(t, json.Unmarshal([]byte(`"NO_SUCH_STATE"`), &state))
}

func TestSampleType(t *testing.T) {
	assert.False(t, ScalarDouble.IsWaveform())
	assert.True(t, WaveformInt.IsWaveform())
	assert.Equal(t, "DBR_SCALAR_DOUBLE", ScalarDouble.String())

	parsed, err := ParseSampleType("DBR_WAVEFORM_FLOAT")
	require.NoError(t, err)
	assert.Equal(t, WaveformFloat, parsed)

	_, err = ParseSampleType("DBR_SCALAR_COMPLEX")
	require.Error(t, err)
}

func TestApplianceInfoEquals(t *testing.T) {
	a := &ApplianceInfo{Identity: "archiver1", MgmtURL: "http://a1/mgmt/bpl"}
	b := &ApplianceInfo{Identity: "archiver1", MgmtURL: "http://other/mgmt/bpl"}
	c := &ApplianceInfo{Identity: "archiver2"}

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(nil))

	var none *ApplianceInfo
	assert.True(t, none.Equals(nil))
}

func TestPVTypeInfoCloneIsIndependent(t *testing.T) {
	info := &PVTypeInfo{
		PVName:            "TEST:PV1",
		ApplianceIdentity: "archiver1",
		SampleType:        ScalarDouble,
		ElementCount:      1,
		DataStores:        []string{"sts", "mts", "lts"},
		ArchiveFields:     []string{"HIHI", "LOLO"},
		ExtraFields:       map[string]string{"RTYP": "ai"},
	}

	clone := info.Clone()
	require.Equal(t, info, clone)

	clone.DataStores[0] = "changed"
	clone.ExtraFields["RTYP"] = "calc"
	assert.Equal(t, "sts", info.DataStores[0])
	assert.Equal(t, "ai", info.ExtraFields["RTYP"])

	var none *PVTypeInfo
	assert.Nil(t, none.Clone())
}

func TestUserSpecifiedSamplingParamsAbsence(t *testing.T) {
	params := NewUserSpecifiedSamplingParams()
	assert.False(t, params.Overridden)

	clone := params.Clone()
	require.Equal(t, params, clone)

	withAliases := &UserSpecifiedSamplingParams{Overridden: true, Aliases: []string{"ALIAS:PV1"}}
	clone = withAliases.Clone()
	clone.Aliases[0] = "changed"
	assert.Equal(t, "ALIAS:PV1", withAliases.Aliases[0])
}

func TestArchivePVRequestClone(t *testing.T) {
	req := &ArchivePVRequest{
		PVName: "TEST:PV1",
		Params: &UserSpecifiedSamplingParams{Overridden: true, SamplingPeriod: 0.5},
		State:  StateRequested,
	}
	clone := req.Clone()
	require.Equal(t, req, clone)

	clone.Params.SamplingPeriod = 5
	assert.Equal(t, 0.5, req.Params.SamplingPeriod)
}
