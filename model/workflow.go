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
	"fmt"
	"time"
)

// WorkflowState is the stage of an in-flight archive request.
// The onboarding of a PV progresses REQUESTED, POLICY_COMPUTED,
// OWNER_ASSIGNED, CONFIRMED; ABORTED is a terminal reachable from any
// non-terminal stage.
type WorkflowState int

const (
	// StateRequested is the initial stage right after the user asked for
	// the PV to be archived.
	StateRequested WorkflowState = iota
	// StatePolicyComputed is reached once a sampling policy has been
	// computed for the PV.
	StatePolicyComputed
	// StateOwnerAssigned is reached once an appliance has been registered
	// as the PV's owner.
	StateOwnerAssigned
	// StateConfirmed is the successful terminal: the first sample has been
	// captured by the engine.
	StateConfirmed
	// StateAborted is the cancellation terminal.
	StateAborted
)

var workflowStateNames = map[WorkflowState]string{
	StateRequested:      "REQUESTED",
	StatePolicyComputed: "POLICY_COMPUTED",
	StateOwnerAssigned:  "OWNER_ASSIGNED",
	StateConfirmed:      "CONFIRMED",
	StateAborted:        "ABORTED",
}

var workflowStatesByName = func() map[string]WorkflowState {
	m := make(map[string]WorkflowState, len(workflowStateNames))
	for state, name := range workflowStateNames {
		m[name] = state
	}
	return m
}()

// ParseWorkflowState returns the WorkflowState named by s.
func ParseWorkflowState(s string) (WorkflowState, error) {
	state, ok := workflowStatesByName[s]
	if !ok {
		return 0, fmt.Errorf("unknown workflow state %q", s)
	}
	return state, nil
}

// String returns the canonical name of the workflow state.
func (s WorkflowState) String() string {
	if name, ok := workflowStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// Terminal reports whether the state ends the workflow.
func (s WorkflowState) Terminal() bool {
	return s == StateConfirmed || s == StateAborted
}

// CanTransitionTo reports whether moving from s to next is a legal step.
// Forward progress goes one stage at a time; ABORTED is reachable from any
// non-terminal stage.
func (s WorkflowState) CanTransitionTo(next WorkflowState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateAborted {
		return true
	}
	return next == s+1
}

// MarshalJSON encodes the workflow state as its canonical name.
func (s WorkflowState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a workflow state from its canonical name.
func (s *WorkflowState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	state, err := ParseWorkflowState(name)
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// ArchivePVRequest is one entry of the archive-request workflow: a PV on its
// way from the initial user request to confirmed archiving. Entries are
// persisted so that the workflow survives a process restart mid-onboarding.
type ArchivePVRequest struct {
	// PVName is the PV being onboarded.
	PVName string `json:"pv_name"`
	// Params are the user overrides supplied at request time.
	Params *UserSpecifiedSamplingParams `json:"params,omitempty"`
	// State is the current workflow stage.
	State WorkflowState `json:"state"`
	// QueuedAt is when the request entered the workflow.
	QueuedAt time.Time `json:"queued_at"`
	// LastTransition is when the request last changed stage.
	LastTransition time.Time `json:"last_transition"`
}

// Clone returns a deep copy of the request.
func (r *ArchivePVRequest) Clone() *ArchivePVRequest {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Params = r.Params.Clone()
	return &clone
}
