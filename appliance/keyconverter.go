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

import "strings"

// PVNameToKeyConverter turns PV names into the prefixes of their chunk keys
// in tiered storage.
//
// Separator runes become path separators and a terminator is appended, so
// "ABC:DEF-GHI" maps to "ABC/DEF/GHI:" with the default configuration. The
// mapping is pure: every node configured identically computes identical
// keys, which is what lets any node locate any PV's chunks.
type PVNameToKeyConverter struct {
	separators string
	terminator string
}

const (
	// DefaultKeySeparators are the PV name runes replaced by '/'.
	DefaultKeySeparators = ":-"
	// DefaultKeyTerminator is appended to every converted name so that
	// "ABC" never prefixes "ABC1" in key space.
	DefaultKeyTerminator = ":"
)

// NewPVNameToKeyConverter creates a converter. Empty arguments fall back to
// the defaults.
func NewPVNameToKeyConverter(separators string, terminator string) *PVNameToKeyConverter {
	if separators == "" {
		separators = DefaultKeySeparators
	}
	if terminator == "" {
		terminator = DefaultKeyTerminator
	}
	return &PVNameToKeyConverter{
		separators: separators,
		terminator: terminator,
	}
}

// KeyName returns the chunk key prefix for the PV name.
func (c *PVNameToKeyConverter) KeyName(pvName string) string {
	converted := strings.Map(func(r rune) rune {
		if strings.ContainsRune(c.separators, r) {
			return '/'
		}
		return r
	}, pvName)
	return converted + c.terminator
}
