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

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
	"github.com/pvarchive/pvarchive/persistence"
)

// countingStore counts type-info reads so tests can observe read-through and
// singleflight behavior.
type countingStore struct {
	persistence.Store
	typeInfoGets atomic.Int32
	delay        time.Duration
}

func (c *countingStore) GetTypeInfo(ctx context.Context, pvName string) (*model.PVTypeInfo, bool, error) {
	c.typeInfoGets.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.Store.GetTypeInfo(ctx, pvName)
}

func newTypeInfo(pvName string) *model.PVTypeInfo {
	return &model.PVTypeInfo{
		PVName:            pvName,
		ApplianceIdentity: "appliance0",
		SampleType:        model.ScalarDouble,
		ElementCount:      1,
		SamplingMethod:    model.MethodMonitor,
		SamplingPeriod:    1.0,
		ArchiveFields:     []string{"HIHI", "LOLO"},
	}
}

func TestTypeInfoReadThrough(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: persistence.NewMemoryStore()}
	require.NoError(t, store.PutTypeInfo(ctx, newTypeInfo("ISRC:QUAD:1:Fld")))

	metadata := NewMetadata(log.DiscardLogger, store)

	info, found, err := metadata.TypeInfo(ctx, "ISRC:QUAD:1:Fld")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ISRC:QUAD:1:Fld", info.PVName)
	assert.EqualValues(t, 1, store.typeInfoGets.Load())

	// second read is served from the cache
	_, found, err = metadata.TypeInfo(ctx, "ISRC:QUAD:1:Fld")
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 1, store.typeInfoGets.Load())

	// callers get copies, not the cached record
	info.ArchiveFields[0] = "SCAN"
	fresh, _, err := metadata.TypeInfo(ctx, "ISRC:QUAD:1:Fld")
	require.NoError(t, err)
	assert.Equal(t, "HIHI", fresh.ArchiveFields[0])
}

func TestTypeInfoMiss(t *testing.T) {
	ctx := context.Background()
	metadata := NewMetadata(log.DiscardLogger, persistence.NewMemoryStore())

	info, found, err := metadata.TypeInfo(ctx, "ISRC:NO:SUCH:PV")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, info)
}

func TestTypeInfoSingleflight(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: persistence.NewMemoryStore(), delay: 100 * time.Millisecond}
	require.NoError(t, store.Store.PutTypeInfo(ctx, newTypeInfo("ISRC:QUAD:1:Fld")))

	metadata := NewMetadata(log.DiscardLogger, store)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, found, err := metadata.TypeInfo(ctx, "ISRC:QUAD:1:Fld")
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "ISRC:QUAD:1:Fld", info.PVName)
		}()
	}
	wg.Wait()

	// concurrent misses collapse into one store lookup
	assert.EqualValues(t, 1, store.typeInfoGets.Load())
}

func TestPutTypeInfo(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	metadata := NewMetadata(log.DiscardLogger, store)

	stored, err := metadata.PutTypeInfo(ctx, "ISRC:QUAD:1:Fld", newTypeInfo("ISRC:QUAD:1:Fld"))
	require.NoError(t, err)
	require.False(t, stored.CreationTime.IsZero())
	require.False(t, stored.ModificationTime.IsZero())

	// the write went through to the store
	persisted, found, err := store.GetTypeInfo(ctx, "ISRC:QUAD:1:Fld")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, stored, persisted)

	// an update preserves the creation time and advances the modification time
	time.Sleep(5 * time.Millisecond)
	update := newTypeInfo("ISRC:QUAD:1:Fld")
	update.SamplingPeriod = 10.0
	updated, err := metadata.PutTypeInfo(ctx, "ISRC:QUAD:1:Fld", update)
	require.NoError(t, err)
	assert.Equal(t, stored.CreationTime, updated.CreationTime)
	assert.True(t, updated.ModificationTime.After(stored.ModificationTime))
	assert.Equal(t, 10.0, updated.SamplingPeriod)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: persistence.NewMemoryStore()}
	metadata := NewMetadata(log.DiscardLogger, store)

	_, err := metadata.PutTypeInfo(ctx, "ISRC:QUAD:1:Fld", newTypeInfo("ISRC:QUAD:1:Fld"))
	require.NoError(t, err)
	before := store.typeInfoGets.Load()

	metadata.Remove("ISRC:QUAD:1:Fld")

	// removal only forgets the cached copy; the store still has the record
	// and the next read loads it again
	_, found, err := metadata.TypeInfo(ctx, "ISRC:QUAD:1:Fld")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, before+1, store.typeInfoGets.Load())
}

func TestWarm(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: persistence.NewMemoryStore()}
	require.NoError(t, store.Store.PutTypeInfo(ctx, newTypeInfo("ISRC:QUAD:1:Fld")))
	require.NoError(t, store.Store.PutTypeInfo(ctx, newTypeInfo("ISRC:VAC:2:Pres")))
	require.NoError(t, store.Store.PutAlias(ctx, "ISRC:ALIAS:1", "ISRC:QUAD:1:Fld"))

	metadata := NewMetadata(log.DiscardLogger, store)
	require.NoError(t, metadata.Warm(ctx))
	warmed := store.typeInfoGets.Load()

	assert.Equal(t, []string{"ISRC:QUAD:1:Fld", "ISRC:VAC:2:Pres"}, metadata.PVNames())
	realName, ok := metadata.RealNameForAlias("ISRC:ALIAS:1")
	require.True(t, ok)
	assert.Equal(t, "ISRC:QUAD:1:Fld", realName)

	// warmed entries are served without further store reads
	_, found, err := metadata.TypeInfo(ctx, "ISRC:QUAD:1:Fld")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, warmed, store.typeInfoGets.Load())
}

func TestAliases(t *testing.T) {
	ctx := context.Background()
	metadata := NewMetadata(log.DiscardLogger, persistence.NewMemoryStore())

	require.NoError(t, metadata.AddAlias(ctx, "ISRC:ALIAS:2", "ISRC:QUAD:1:Fld"))
	require.NoError(t, metadata.AddAlias(ctx, "ISRC:ALIAS:1", "ISRC:QUAD:1:Fld"))
	require.NoError(t, metadata.AddAlias(ctx, "ISRC:ALIAS:3", "ISRC:VAC:2:Pres"))

	assert.Equal(t, []string{"ISRC:ALIAS:1", "ISRC:ALIAS:2", "ISRC:ALIAS:3"}, metadata.AllAliases())
	assert.Equal(t, []string{"ISRC:ALIAS:1", "ISRC:ALIAS:2"}, metadata.AliasesForPV("ISRC:QUAD:1:Fld"))

	t.Run("With real name mismatch", func(t *testing.T) {
		err := metadata.RemoveAlias(ctx, "ISRC:ALIAS:1", "ISRC:WRONG:PV")
		require.ErrorIs(t, err, ErrAliasNotFound)
		// the mapping is untouched
		realName, ok := metadata.RealNameForAlias("ISRC:ALIAS:1")
		require.True(t, ok)
		assert.Equal(t, "ISRC:QUAD:1:Fld", realName)
	})

	t.Run("With matching removal", func(t *testing.T) {
		require.NoError(t, metadata.RemoveAlias(ctx, "ISRC:ALIAS:1", "ISRC:QUAD:1:Fld"))
		_, ok := metadata.RealNameForAlias("ISRC:ALIAS:1")
		assert.False(t, ok)
	})

	t.Run("With absent alias", func(t *testing.T) {
		err := metadata.RemoveAlias(ctx, "ISRC:NO:SUCH:ALIAS", "ISRC:QUAD:1:Fld")
		assert.ErrorIs(t, err, ErrAliasNotFound)
	})
}

func TestRemoveAliasStoreFallback(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	// alias written to the store outside of this cache, e.g. by another node
	require.NoError(t, store.PutAlias(ctx, "ISRC:ALIAS:1", "ISRC:QUAD:1:Fld"))

	metadata := NewMetadata(log.DiscardLogger, store)
	require.NoError(t, metadata.RemoveAlias(ctx, "ISRC:ALIAS:1", "ISRC:QUAD:1:Fld"))

	_, found, err := store.GetAlias(ctx, "ISRC:ALIAS:1")
	require.NoError(t, err)
	assert.False(t, found)
}
