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

package cluster

import "errors"

var (
	// ErrAlreadyRegistered is returned by Register when the PV already has an
	// owner. The losing caller of a registration race receives this error;
	// the recorded owner is left untouched.
	ErrAlreadyRegistered = errors.New("cluster: PV is already registered")
	// ErrNotAMember is returned when the local identity does not appear in
	// the membership descriptor.
	ErrNotAMember = errors.New("cluster: local identity is not a cluster member")
	// ErrUnknownAppliance is returned when an operation names an appliance
	// the membership descriptor does not contain.
	ErrUnknownAppliance = errors.New("cluster: unknown appliance")
	// ErrNoMembers is returned when the membership descriptor is empty.
	ErrNoMembers = errors.New("cluster: membership descriptor has no appliances")
)
