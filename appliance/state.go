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

import "fmt"

// StartupState is the stage the local startup sequence has reached. The
// sequence is monotonic and never regresses; cluster-wide completion is the
// orchestrator's concern, the service only tracks its own node.
type StartupState int32

const (
	// ZerothState is the freshly constructed service, before Start.
	ZerothState StartupState = iota
	// ReadyToJoinAppliance means persisted state is loaded and the service
	// can answer queries.
	ReadyToJoinAppliance
	// PostStartupRunning means the post-startup background work is being
	// brought up.
	PostStartupRunning
	// StartupComplete means the local startup sequence has finished.
	StartupComplete
)

var startupStateNames = map[StartupState]string{
	ZerothState:          "ZEROTH_STATE",
	ReadyToJoinAppliance: "READY_TO_JOIN_APPLIANCE",
	PostStartupRunning:   "POST_STARTUP_RUNNING",
	StartupComplete:      "STARTUP_COMPLETE",
}

// String returns the canonical name of the startup state.
func (s StartupState) String() string {
	if name, ok := startupStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STARTUP_STATE(%d)", int32(s))
}
