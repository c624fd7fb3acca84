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

package syncmap

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncMap(t *testing.T) {
	sm := New[string, int]()
	sm.Set("a", 1)
	sm.Set("b", 2)

	val, ok := sm.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, val)

	_, ok = sm.Get("missing")
	require.False(t, ok)

	assert.Equal(t, 2, sm.Len())

	sm.Set("a", 10)
	val, ok = sm.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, val)

	sm.Delete("a")
	_, ok = sm.Get("a")
	require.False(t, ok)
	assert.Equal(t, 1, sm.Len())
}

func TestSyncMapKeysAndValues(t *testing.T) {
	sm := New[string, int]()
	sm.Set("x", 1)
	sm.Set("y", 2)
	sm.Set("z", 3)

	keys := sm.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"x", "y", "z"}, keys)

	values := sm.Values()
	sort.Ints(values)
	assert.Equal(t, []int{1, 2, 3}, values)
}

func TestSyncMapRange(t *testing.T) {
	sm := New[string, int]()
	sm.Set("x", 1)
	sm.Set("y", 2)

	total := 0
	sm.Range(func(_ string, v int) {
		total += v
	})
	assert.Equal(t, 3, total)
}

func TestSyncMapReset(t *testing.T) {
	sm := New[string, int]()
	sm.Set("x", 1)
	sm.Set("y", 2)
	sm.Reset()
	assert.Zero(t, sm.Len())
}

func TestSyncMapConcurrentAccess(t *testing.T) {
	sm := New[int, int]()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sm.Set(i, i*2)
		}()
	}
	wg.Wait()

	require.Equal(t, 50, sm.Len())
	for i := range 50 {
		val, ok := sm.Get(i)
		require.True(t, ok)
		require.Equal(t, i*2, val)
	}
}
