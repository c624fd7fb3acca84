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

import "slices"

// UserSpecifiedSamplingParams carries the optional overrides a user supplies
// when requesting that a PV be archived.
//
// Absence of an override is an explicit, common state: the zero value with
// Overridden unset means "use the computed policy as is". It is distinct from
// an override that happens to carry empty values.
type UserSpecifiedSamplingParams struct {
	// Overridden is set when the user supplied any override at all.
	Overridden bool `json:"overridden"`
	// SamplingMethod overrides the sampling method when non-empty.
	SamplingMethod SamplingMethod `json:"sampling_method,omitempty"`
	// SamplingPeriod overrides the sampling period in seconds when positive.
	SamplingPeriod float64 `json:"sampling_period,omitempty"`
	// PolicyName pins the named policy, bypassing rule evaluation.
	PolicyName string `json:"policy_name,omitempty"`
	// ControllingPV gates archiving on another PV's value.
	ControllingPV string `json:"controlling_pv,omitempty"`
	// ArchiveFields replaces the policy's archive field list when non-empty.
	ArchiveFields []string `json:"archive_fields,omitempty"`
	// Aliases are additional names to register for the PV once archived.
	Aliases []string `json:"aliases,omitempty"`
	// SkipCapacityPlanning assigns the PV to the requesting appliance
	// directly instead of waiting for capacity planning.
	SkipCapacityPlanning bool `json:"skip_capacity_planning,omitempty"`
}

// NewUserSpecifiedSamplingParams returns params representing "no override".
func NewUserSpecifiedSamplingParams() *UserSpecifiedSamplingParams {
	return &UserSpecifiedSamplingParams{}
}

// Clone returns a deep copy of the params.
func (u *UserSpecifiedSamplingParams) Clone() *UserSpecifiedSamplingParams {
	if u == nil {
		return nil
	}
	clone := *u
	clone.ArchiveFields = slices.Clone(u.ArchiveFields)
	clone.Aliases = slices.Clone(u.Aliases)
	return &clone
}
