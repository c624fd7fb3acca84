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

// Installation property keys. Properties tune site-specific behavior; every
// key has a built-in default so an empty property set is a working
// installation.
const (
	// PropExtraFields lists the fields fetched once at onboarding time and
	// fed to policy decisions, as a CSV.
	PropExtraFields = "pvarchive.fields.extra"
	// PropRuntimeFields lists the fields the engine keeps the latest value
	// of in memory, as a CSV.
	PropRuntimeFields = "pvarchive.fields.runtime"
	// PropStreamFields lists the fields archived as part of every PV's
	// sample stream, as a CSV.
	PropStreamFields = "pvarchive.fields.stream"
	// PropKeySeparators overrides the PV name runes the key converter
	// replaces with '/'.
	PropKeySeparators = "pvarchive.pvname.key.separators"
	// PropKeyTerminator overrides the terminator the key converter appends.
	PropKeyTerminator = "pvarchive.pvname.key.terminator"
)

var (
	defaultExtraFields   = []string{"MDEL", "ADEL", "SCAN", "RTYP"}
	defaultRuntimeFields = []string{"DESC", "EGU", "PREC", "HIHI", "HIGH", "LOW", "LOLO", "HOPR", "LOPR", "DRVH", "DRVL"}
	defaultStreamFields  = []string{"HIHI", "HIGH", "LOW", "LOLO", "LOPR", "HOPR"}
)

// fieldsProperty parses the CSV property named by key, falling back to the
// given defaults when the property is absent or empty.
func fieldsProperty(properties map[string]string, key string, defaults []string) []string {
	raw, ok := properties[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return defaults
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		if field := strings.TrimSpace(part); field != "" {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return defaults
	}
	return fields
}
