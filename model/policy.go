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

// MetaInfo is the metadata the ingestion collaborator discovered about a PV.
// It is the input to policy computation and is never persisted by this core.
type MetaInfo struct {
	// SampleType is the discovered DBR type.
	SampleType SampleType `json:"sample_type"`
	// ElementCount is the discovered number of elements per sample.
	ElementCount int `json:"element_count"`
	// EventRate is the observed update rate in events/sec.
	EventRate float64 `json:"event_rate"`
	// StorageRate is the estimated storage rate in bytes/sec.
	StorageRate float64 `json:"storage_rate"`
	// AliasName is the .NAME field when the PV was reached through an alias.
	AliasName string `json:"alias_name,omitempty"`
	// HostName is the IOC host serving the PV.
	HostName string `json:"host_name,omitempty"`
	// ExtraFields holds the extra scalar fields fetched at discovery time.
	ExtraFields map[string]string `json:"extra_fields,omitempty"`
}

// PolicyConfig is a named, computed bundle of archiving parameters: the
// output of the policy engine. It is not persisted per PV; it is snapshotted
// into the PVTypeInfo at decision time.
type PolicyConfig struct {
	// Name identifies the policy that produced this config.
	Name string `json:"name"`
	// SamplingMethod tells the engine how to obtain samples.
	SamplingMethod SamplingMethod `json:"sampling_method"`
	// SamplingPeriod is the sampling period in seconds.
	SamplingPeriod float64 `json:"sampling_period"`
	// DataStores lists the tiered stores samples flow through, in order.
	DataStores []string `json:"data_stores,omitempty"`
	// ArchiveFields are the extra scalar fields archived alongside the value.
	ArchiveFields []string `json:"archive_fields,omitempty"`
	// ControlPV, when set, gates archiving on another PV's value.
	ControlPV string `json:"control_pv,omitempty"`
	// Appliance is an optional placement hint naming the appliance that
	// should own the PV.
	Appliance string `json:"appliance,omitempty"`
}

// Clone returns a deep copy of the policy config.
func (p *PolicyConfig) Clone() *PolicyConfig {
	if p == nil {
		return nil
	}
	clone := *p
	clone.DataStores = slices.Clone(p.DataStores)
	clone.ArchiveFields = slices.Clone(p.ArchiveFields)
	return &clone
}
