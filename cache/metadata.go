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

// Package cache provides the in-memory view of PV metadata and aliases in
// front of the persistence store.
//
// Reads are read-through: a miss loads from the store and fills the cache.
// Writes are write-through: the store is updated first and the cache only
// after the store accepted the write, so a crash between the two leaves the
// cache cold, never wrong. There is no TTL eviction; the metadata set is
// bounded by the number of archived PVs and entries live until explicitly
// removed.
package cache

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pvarchive/pvarchive/internal/syncmap"
	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
	"github.com/pvarchive/pvarchive/persistence"
)

// Metadata caches PV type infos and alias mappings.
type Metadata struct {
	logger log.Logger
	store  persistence.Store

	typeInfos *syncmap.SyncMap[string, *model.PVTypeInfo]
	aliases   *syncmap.SyncMap[string, string]

	// loads collapses concurrent read-through misses for the same PV into a
	// single store round trip
	loads singleflight.Group
}

// NewMetadata creates an empty metadata cache in front of the store.
func NewMetadata(logger log.Logger, store persistence.Store) *Metadata {
	return &Metadata{
		logger:    logger,
		store:     store,
		typeInfos: syncmap.New[string, *model.PVTypeInfo](),
		aliases:   syncmap.New[string, string](),
	}
}

// Warm populates the cache from the store. It is called once during startup
// so that steady-state reads are served from memory.
func (m *Metadata) Warm(ctx context.Context) error {
	pvNames, err := m.store.ListTypeInfos(ctx)
	if err != nil {
		return err
	}
	for _, pvName := range pvNames {
		info, found, err := m.store.GetTypeInfo(ctx, pvName)
		if err != nil {
			return err
		}
		if found {
			m.typeInfos.Set(pvName, info)
		}
	}

	aliases, err := m.store.ListAliases(ctx)
	if err != nil {
		return err
	}
	for _, alias := range aliases {
		realName, found, err := m.store.GetAlias(ctx, alias)
		if err != nil {
			return err
		}
		if found {
			m.aliases.Set(alias, realName)
		}
	}

	m.logger.Infof("warmed metadata cache: typeinfos=(%d) aliases=(%d)", m.typeInfos.Len(), m.aliases.Len())
	return nil
}

// TypeInfo returns the type info for the PV, loading it from the store on a
// cache miss. Absence is reported through the boolean; concurrent misses for
// the same PV share one store lookup.
func (m *Metadata) TypeInfo(ctx context.Context, pvName string) (*model.PVTypeInfo, bool, error) {
	if info, ok := m.typeInfos.Get(pvName); ok {
		return info.Clone(), true, nil
	}

	v, err, _ := m.loads.Do(pvName, func() (any, error) {
		// a call that piled up behind a finished load is served from the cache
		if info, ok := m.typeInfos.Get(pvName); ok {
			return info, nil
		}
		info, found, err := m.store.GetTypeInfo(ctx, pvName)
		if err != nil {
			return nil, err
		}
		if !found {
			return (*model.PVTypeInfo)(nil), nil
		}
		m.typeInfos.Set(pvName, info)
		return info, nil
	})
	if err != nil {
		return nil, false, err
	}

	info := v.(*model.PVTypeInfo)
	if info == nil {
		return nil, false, nil
	}
	return info.Clone(), true, nil
}

// PutTypeInfo persists the type info and then updates the cache. The
// modification time is stamped on every write; the creation time of an
// existing record is preserved so it tracks the first registration.
// The stored record is returned.
func (m *Metadata) PutTypeInfo(ctx context.Context, pvName string, info *model.PVTypeInfo) (*model.PVTypeInfo, error) {
	record := info.Clone()
	record.PVName = pvName

	now := time.Now()
	record.ModificationTime = now
	if existing, found, err := m.TypeInfo(ctx, pvName); err != nil {
		return nil, err
	} else if found && !existing.CreationTime.IsZero() {
		record.CreationTime = existing.CreationTime
	} else if record.CreationTime.IsZero() {
		record.CreationTime = now
	}

	if err := m.store.PutTypeInfo(ctx, record); err != nil {
		return nil, err
	}
	m.typeInfos.Set(pvName, record)
	return record.Clone(), nil
}

// Remove forgets the PV's cached type info. The store is left untouched;
// durable removal goes through the resolver's unregister, which invokes this
// as its forget callback.
func (m *Metadata) Remove(pvName string) {
	m.typeInfos.Delete(pvName)
}

// PVNames returns the names of all PVs with cached type info, sorted.
func (m *Metadata) PVNames() []string {
	pvNames := m.typeInfos.Keys()
	sort.Strings(pvNames)
	return pvNames
}

// AddAlias records that alias resolves to realName.
func (m *Metadata) AddAlias(ctx context.Context, alias string, realName string) error {
	if err := m.store.PutAlias(ctx, alias, realName); err != nil {
		return err
	}
	m.aliases.Set(alias, realName)
	return nil
}

// RemoveAlias removes the alias mapping. The mapping is removed only when it
// currently resolves to realName; removing an absent alias or naming the
// wrong real name fails with ErrAliasNotFound and changes nothing.
func (m *Metadata) RemoveAlias(ctx context.Context, alias string, realName string) error {
	current, ok := m.aliases.Get(alias)
	if !ok {
		// the cache is warmed at startup, but fall back to the store in case
		// the alias was written by another node after warming
		stored, found, err := m.store.GetAlias(ctx, alias)
		if err != nil {
			return err
		}
		if !found {
			return ErrAliasNotFound
		}
		current = stored
	}
	if current != realName {
		return ErrAliasNotFound
	}

	if err := m.store.DeleteAlias(ctx, alias); err != nil {
		return err
	}
	m.aliases.Delete(alias)
	return nil
}

// RealNameForAlias resolves an alias to the PV's real name.
func (m *Metadata) RealNameForAlias(alias string) (string, bool) {
	return m.aliases.Get(alias)
}

// AliasesForPV returns all aliases resolving to the real name, sorted.
func (m *Metadata) AliasesForPV(realName string) []string {
	aliases := make([]string, 0)
	m.aliases.Range(func(alias string, real string) {
		if real == realName {
			aliases = append(aliases, alias)
		}
	})
	sort.Strings(aliases)
	return aliases
}

// AllAliases returns all alias names, sorted.
func (m *Metadata) AllAliases() []string {
	aliases := m.aliases.Keys()
	sort.Strings(aliases)
	return aliases
}
