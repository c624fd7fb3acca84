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

// Package keylock provides a striped mutex keyed by string.
//
// Operations on the same key are serialized while operations on keys that
// hash to different stripes proceed independently. The stripe count bounds
// memory regardless of how many distinct keys are locked over time.
package keylock

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultStripes is the stripe count used by New when given a non-positive value.
const DefaultStripes = 64

// KeyLock is a fixed set of mutexes indexed by the xxhash of the key.
//
// Stripe locks are not reentrant. Callers must not acquire a key while
// holding another key that may share its stripe.
type KeyLock struct {
	stripes []sync.Mutex
	mask    uint64
}

// New creates a KeyLock with the given number of stripes rounded up to the
// next power of two.
func New(stripes int) *KeyLock {
	if stripes <= 0 {
		stripes = DefaultStripes
	}
	size := 1
	for size < stripes {
		size <<= 1
	}
	return &KeyLock{
		stripes: make([]sync.Mutex, size),
		mask:    uint64(size - 1),
	}
}

// Lock acquires the stripe that the given key hashes to.
func (l *KeyLock) Lock(key string) {
	l.stripes[hashOf(key)&l.mask].Lock()
}

// Unlock releases the stripe that the given key hashes to.
func (l *KeyLock) Unlock(key string) {
	l.stripes[hashOf(key)&l.mask].Unlock()
}

func hashOf(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Do runs fn while holding the key's stripe.
func (l *KeyLock) Do(key string, fn func()) {
	l.Lock(key)
	defer l.Unlock(key)
	fn()
}
