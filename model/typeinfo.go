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
	"slices"
	"time"
)

// SampleType identifies the DBR type of the samples archived for a PV, the
// cross product of scalar/waveform and the supported primitive types.
type SampleType int

const (
	// ScalarString is a scalar string sample.
	ScalarString SampleType = iota
	// ScalarShort is a scalar 16-bit integer sample.
	ScalarShort
	// ScalarFloat is a scalar 32-bit float sample.
	ScalarFloat
	// ScalarEnum is a scalar enumeration sample.
	ScalarEnum
	// ScalarByte is a scalar byte sample.
	ScalarByte
	// ScalarInt is a scalar 32-bit integer sample.
	ScalarInt
	// ScalarDouble is a scalar 64-bit float sample.
	ScalarDouble
	// WaveformString is an array-of-string sample.
	WaveformString
	// WaveformShort is an array-of-16-bit-integer sample.
	WaveformShort
	// WaveformFloat is an array-of-32-bit-float sample.
	WaveformFloat
	// WaveformEnum is an array-of-enumeration sample.
	WaveformEnum
	// WaveformByte is an array-of-byte sample.
	WaveformByte
	// WaveformInt is an array-of-32-bit-integer sample.
	WaveformInt
	// WaveformDouble is an array-of-64-bit-float sample.
	WaveformDouble
)

var sampleTypeNames = map[SampleType]string{
	ScalarString:   "DBR_SCALAR_STRING",
	ScalarShort:    "DBR_SCALAR_SHORT",
	ScalarFloat:    "DBR_SCALAR_FLOAT",
	ScalarEnum:     "DBR_SCALAR_ENUM",
	ScalarByte:     "DBR_SCALAR_BYTE",
	ScalarInt:      "DBR_SCALAR_INT",
	ScalarDouble:   "DBR_SCALAR_DOUBLE",
	WaveformString: "DBR_WAVEFORM_STRING",
	WaveformShort:  "DBR_WAVEFORM_SHORT",
	WaveformFloat:  "DBR_WAVEFORM_FLOAT",
	WaveformEnum:   "DBR_WAVEFORM_ENUM",
	WaveformByte:   "DBR_WAVEFORM_BYTE",
	WaveformInt:    "DBR_WAVEFORM_INT",
	WaveformDouble: "DBR_WAVEFORM_DOUBLE",
}

var sampleTypesByName = func() map[string]SampleType {
	m := make(map[string]SampleType, len(sampleTypeNames))
	for typ, name := range sampleTypeNames {
		m[name] = typ
	}
	return m
}()

// ParseSampleType returns the SampleType named by s.
func ParseSampleType(s string) (SampleType, error) {
	typ, ok := sampleTypesByName[s]
	if !ok {
		return 0, fmt.Errorf("unknown sample type %q", s)
	}
	return typ, nil
}

// IsWaveform reports whether the sample type is an array type.
func (t SampleType) IsWaveform() bool {
	return t >= WaveformString && t <= WaveformDouble
}

// String returns the canonical name of the sample type.
func (t SampleType) String() string {
	if name, ok := sampleTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DBR_UNKNOWN(%d)", int(t))
}

// MarshalJSON encodes the sample type as its canonical name.
func (t SampleType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a sample type from its canonical name.
func (t *SampleType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	typ, err := ParseSampleType(name)
	if err != nil {
		return err
	}
	*t = typ
	return nil
}

// MarshalYAML encodes the sample type as its canonical name.
func (t SampleType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML decodes a sample type from its canonical name.
func (t *SampleType) UnmarshalYAML(unmarshal func(any) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	typ, err := ParseSampleType(name)
	if err != nil {
		return err
	}
	*t = typ
	return nil
}

// SamplingMethod tells the engine how samples are to be obtained for a PV.
type SamplingMethod string

const (
	// MethodScan samples the PV at a fixed period.
	MethodScan SamplingMethod = "SCAN"
	// MethodMonitor subscribes to the PV and records every update.
	MethodMonitor SamplingMethod = "MONITOR"
	// MethodDontArchive marks the PV as deliberately not archived.
	MethodDontArchive SamplingMethod = "DONT_ARCHIVE"
)

// PVTypeInfo is the per-PV metadata record: the owning appliance, the sample
// type and the archiving parameters. The canonical copy lives in the
// persistence store; every node caches it in memory for read speed.
// A PV has exactly one owning appliance at any time.
type PVTypeInfo struct {
	// PVName is the name the PV is archived under.
	PVName string `json:"pv_name"`
	// ApplianceIdentity is the identity of the owning appliance.
	ApplianceIdentity string `json:"appliance_identity"`
	// SampleType is the DBR type of the archived samples.
	SampleType SampleType `json:"sample_type"`
	// ElementCount is the number of elements per sample; 1 for scalars.
	ElementCount int `json:"element_count"`
	// SamplingMethod tells the engine how to obtain samples.
	SamplingMethod SamplingMethod `json:"sampling_method"`
	// SamplingPeriod is the sampling period in seconds.
	SamplingPeriod float64 `json:"sampling_period"`
	// SampleBufferCapacity sizes the engine-side sample buffer.
	SampleBufferCapacity int `json:"sample_buffer_capacity,omitempty"`
	// PolicyName is the name of the policy used at decision time.
	PolicyName string `json:"policy_name,omitempty"`
	// DataStores lists the tiered stores samples flow through, in order.
	DataStores []string `json:"data_stores,omitempty"`
	// ArchiveFields are the extra scalar fields captured alongside the value.
	ArchiveFields []string `json:"archive_fields,omitempty"`
	// ExtraFields holds additional metadata discovered at onboarding time.
	ExtraFields map[string]string `json:"extra_fields,omitempty"`
	// ControllingPV, when set, gates archiving on another PV's value.
	ControllingPV string `json:"controlling_pv,omitempty"`
	// Paused indicates archiving is temporarily suspended for this PV.
	Paused bool `json:"paused,omitempty"`
	// ChunkKey, when set, overrides the computed chunk key prefix.
	ChunkKey string `json:"chunk_key,omitempty"`
	// CreationTime is when the PV completed onboarding.
	CreationTime time.Time `json:"creation_time"`
	// ModificationTime is when the record was last updated.
	ModificationTime time.Time `json:"modification_time"`
	// ComputedEventRate is the measured event rate in events/sec.
	ComputedEventRate float64 `json:"computed_event_rate,omitempty"`
	// ComputedStorageRate is the measured storage rate in bytes/sec.
	ComputedStorageRate float64 `json:"computed_storage_rate,omitempty"`
	// ComputedBytesPerEvent is the measured average event size in bytes.
	ComputedBytesPerEvent float64 `json:"computed_bytes_per_event,omitempty"`
}

// Clone returns a deep copy so that cached records can be handed out without
// exposing internal state to mutation.
func (p *PVTypeInfo) Clone() *PVTypeInfo {
	if p == nil {
		return nil
	}
	clone := *p
	clone.DataStores = slices.Clone(p.DataStores)
	clone.ArchiveFields = slices.Clone(p.ArchiveFields)
	if p.ExtraFields != nil {
		clone.ExtraFields = make(map[string]string, len(p.ExtraFields))
		for k, v := range p.ExtraFields {
			clone.ExtraFields[k] = v
		}
	}
	return &clone
}
