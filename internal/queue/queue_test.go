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

package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 100; i++ {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 100, q.Len())

	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.True(t, q.IsEmpty())
}

func TestQueueGrowsBeyondInitialCapacity(t *testing.T) {
	q := New[int]()
	for i := 0; i < minQueueLen*4; i++ {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, minQueueLen*4, q.Len())
	for i := 0; i < minQueueLen*4; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestQueueClose(t *testing.T) {
	q := New[string]()
	require.True(t, q.Push("one"))
	q.Close()

	assert.True(t, q.IsClosed())
	assert.False(t, q.Push("two"))

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueueCloseRemaining(t *testing.T) {
	q := New[string]()
	require.True(t, q.Push("one"))
	require.True(t, q.Push("two"))

	rem := q.CloseRemaining()
	assert.Equal(t, []string{"one", "two"}, rem)
	assert.True(t, q.IsClosed())

	// closing twice returns nothing
	assert.Empty(t, q.CloseRemaining())
}

func TestQueueWait(t *testing.T) {
	q := New[int]()

	done := make(chan int, 1)
	go func() {
		v, ok := q.Wait()
		if ok {
			done <- v
		}
		close(done)
	}()

	require.True(t, q.Push(42))
	v, ok := <-done
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestQueueWaitReturnsOnClose(t *testing.T) {
	q := New[int]()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, ok := q.Wait()
		assert.False(t, ok)
	}()

	q.Close()
	wg.Wait()
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(i*100 + j)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
}
