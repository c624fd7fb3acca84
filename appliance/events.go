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

package appliance

import "github.com/pvarchive/pvarchive/model"

// Event stream topics. Events are delivered to in-process subscribers only;
// they are not a cluster broadcast mechanism. An event is published after
// its mutation committed, inside the PV's critical section, so subscribers
// observe per-PV changes in order.
const (
	// TopicPVRegistered carries PVRegistered payloads.
	TopicPVRegistered = "pv.registered"
	// TopicPVRemoved carries PVRemoved payloads.
	TopicPVRemoved = "pv.removed"
	// TopicTypeInfoUpdated carries TypeInfoUpdated payloads.
	TopicTypeInfoUpdated = "pv.typeinfo.updated"
)

// PVRegistered is published when a PV is assigned to an appliance.
type PVRegistered struct {
	// PV is the registered PV name.
	PV string `json:"pv"`
	// Appliance is the identity of the new owner.
	Appliance string `json:"appliance"`
}

// PVRemoved is published when a PV is removed from the cluster.
type PVRemoved struct {
	// PV is the removed PV name.
	PV string `json:"pv"`
}

// TypeInfoUpdated is published when a PV's type info is stored or replaced.
type TypeInfoUpdated struct {
	// PV is the PV whose record changed.
	PV string `json:"pv"`
	// TypeInfo is the record as stored.
	TypeInfo *model.PVTypeInfo `json:"type_info"`
}
