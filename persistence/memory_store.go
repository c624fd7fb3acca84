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

package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/pvarchive/pvarchive/model"
)

// MemoryStore is an in-memory implementation of Store that keeps the six
// collections in mutex-protected maps.
//
// Concurrency:
//   - A single RWMutex guards all collections, allowing multiple concurrent
//     readers while writes are exclusive. Holding the write lock across
//     PurgePV makes the multi-collection removal atomic.
//   - Stored and returned entities are deep-cloned so callers can never
//     mutate internal state.
//
// Use cases:
//   - Tests and single-process deployments where durability across restarts
//     is not required. Production clusters want BoltStore or BadgerStore.
type MemoryStore struct {
	mu         sync.RWMutex
	appliances map[string]*model.ApplianceInfo
	owners     map[string]string
	typeInfos  map[string]*model.PVTypeInfo
	aliases    map[string]string
	requests   map[string]*model.ArchivePVRequest
	bridges    map[string]string
	closed     bool
}

var _ Store = (*MemoryStore)(nil) // enforce compilation error

// NewMemoryStore returns a new in-memory Store implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appliances: make(map[string]*model.ApplianceInfo),
		owners:     make(map[string]string),
		typeInfos:  make(map[string]*model.PVTypeInfo),
		aliases:    make(map[string]string),
		requests:   make(map[string]*model.ArchivePVRequest),
		bridges:    make(map[string]string),
	}
}

// GetAppliance returns the persisted appliance info for the identity.
func (m *MemoryStore) GetAppliance(ctx context.Context, identity string) (*model.ApplianceInfo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ensureOpen(ctx); err != nil {
		return nil, false, err
	}
	info, ok := m.appliances[identity]
	if !ok {
		return nil, false, nil
	}
	clone := *info
	return &clone, true, nil
}

// PutAppliance stores or replaces the appliance info.
func (m *MemoryStore) PutAppliance(ctx context.Context, info *model.ApplianceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	clone := *info
	m.appliances[info.Identity] = &clone
	return nil
}

// DeleteAppliance removes the appliance info for the identity.
func (m *MemoryStore) DeleteAppliance(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	delete(m.appliances, identity)
	return nil
}

// ListAppliances returns all persisted appliance identities, sorted.
func (m *MemoryStore) ListAppliances(ctx context.Context) ([]string, error) {
	return m.listKeys(ctx, func() []string { return mapKeys(m.appliances) })
}

// GetOwner returns the identity of the appliance owning the PV.
func (m *MemoryStore) GetOwner(ctx context.Context, pvName string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ensureOpen(ctx); err != nil {
		return "", false, err
	}
	identity, ok := m.owners[pvName]
	return identity, ok, nil
}

// PutOwner stores or replaces the PV's owner unconditionally.
func (m *MemoryStore) PutOwner(ctx context.Context, pvName string, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	m.owners[pvName] = identity
	return nil
}

// InsertOwnerIfAbsent atomically records the PV's owner when absent.
func (m *MemoryStore) InsertOwnerIfAbsent(ctx context.Context, pvName string, identity string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return false, err
	}
	if _, exists := m.owners[pvName]; exists {
		return false, nil
	}
	m.owners[pvName] = identity
	return true, nil
}

// DeleteOwner removes the PV's ownership record.
func (m *MemoryStore) DeleteOwner(ctx context.Context, pvName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	delete(m.owners, pvName)
	return nil
}

// ListOwners returns the names of all owned PVs, sorted.
func (m *MemoryStore) ListOwners(ctx context.Context) ([]string, error) {
	return m.listKeys(ctx, func() []string { return mapKeys(m.owners) })
}

// GetTypeInfo returns the persisted type info for the PV.
func (m *MemoryStore) GetTypeInfo(ctx context.Context, pvName string) (*model.PVTypeInfo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ensureOpen(ctx); err != nil {
		return nil, false, err
	}
	info, ok := m.typeInfos[pvName]
	if !ok {
		return nil, false, nil
	}
	return info.Clone(), true, nil
}

// PutTypeInfo stores or replaces the PV's type info.
func (m *MemoryStore) PutTypeInfo(ctx context.Context, info *model.PVTypeInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	m.typeInfos[info.PVName] = info.Clone()
	return nil
}

// DeleteTypeInfo removes the PV's type info.
func (m *MemoryStore) DeleteTypeInfo(ctx context.Context, pvName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	delete(m.typeInfos, pvName)
	return nil
}

// ListTypeInfos returns the names of all PVs with type info, sorted.
func (m *MemoryStore) ListTypeInfos(ctx context.Context) ([]string, error) {
	return m.listKeys(ctx, func() []string { return mapKeys(m.typeInfos) })
}

// GetAlias returns the real name the alias maps to.
func (m *MemoryStore) GetAlias(ctx context.Context, alias string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ensureOpen(ctx); err != nil {
		return "", false, err
	}
	realName, ok := m.aliases[alias]
	return realName, ok, nil
}

// PutAlias stores or replaces the alias mapping.
func (m *MemoryStore) PutAlias(ctx context.Context, alias string, realName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	m.aliases[alias] = realName
	return nil
}

// DeleteAlias removes the alias mapping.
func (m *MemoryStore) DeleteAlias(ctx context.Context, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	delete(m.aliases, alias)
	return nil
}

// ListAliases returns all alias names, sorted.
func (m *MemoryStore) ListAliases(ctx context.Context) ([]string, error) {
	return m.listKeys(ctx, func() []string { return mapKeys(m.aliases) })
}

// GetArchiveRequest returns the persisted workflow entry for the PV.
func (m *MemoryStore) GetArchiveRequest(ctx context.Context, pvName string) (*model.ArchivePVRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ensureOpen(ctx); err != nil {
		return nil, false, err
	}
	request, ok := m.requests[pvName]
	if !ok {
		return nil, false, nil
	}
	return request.Clone(), true, nil
}

// PutArchiveRequest stores or replaces the PV's workflow entry.
func (m *MemoryStore) PutArchiveRequest(ctx context.Context, request *model.ArchivePVRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	m.requests[request.PVName] = request.Clone()
	return nil
}

// DeleteArchiveRequest removes the PV's workflow entry.
func (m *MemoryStore) DeleteArchiveRequest(ctx context.Context, pvName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	delete(m.requests, pvName)
	return nil
}

// ListArchiveRequests returns the names of all PVs with pending entries, sorted.
func (m *MemoryStore) ListArchiveRequests(ctx context.Context) ([]string, error) {
	return m.listKeys(ctx, func() []string { return mapKeys(m.requests) })
}

// GetBridgeServer returns the archives CSV for the bridge server URL.
func (m *MemoryStore) GetBridgeServer(ctx context.Context, serverURL string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ensureOpen(ctx); err != nil {
		return "", false, err
	}
	csv, ok := m.bridges[serverURL]
	return csv, ok, nil
}

// PutBridgeServer stores or replaces the bridge server entry.
func (m *MemoryStore) PutBridgeServer(ctx context.Context, serverURL string, archivesCSV string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	m.bridges[serverURL] = archivesCSV
	return nil
}

// DeleteBridgeServer removes the bridge server entry.
func (m *MemoryStore) DeleteBridgeServer(ctx context.Context, serverURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	delete(m.bridges, serverURL)
	return nil
}

// ListBridgeServers returns all bridge server URLs, sorted.
func (m *MemoryStore) ListBridgeServers(ctx context.Context) ([]string, error) {
	return m.listKeys(ctx, func() []string { return mapKeys(m.bridges) })
}

// PurgePV removes the PV's ownership, type info and workflow entry in one
// critical section.
func (m *MemoryStore) PurgePV(ctx context.Context, pvName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	delete(m.owners, pvName)
	delete(m.typeInfos, pvName)
	delete(m.requests, pvName)
	return nil
}

// Ping verifies that the store has not been closed.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ensureOpen(ctx)
}

// Close clears all collections. Subsequent operations fail with ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.appliances = nil
	m.owners = nil
	m.typeInfos = nil
	m.aliases = nil
	m.requests = nil
	m.bridges = nil
	return nil
}

// ensureOpen must be called with at least the read lock held.
func (m *MemoryStore) ensureOpen(ctx context.Context) error {
	if m.closed {
		return ErrStoreClosed
	}
	return contextErr(ctx)
}

func (m *MemoryStore) listKeys(ctx context.Context, keys func() []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ensureOpen(ctx); err != nil {
		return nil, err
	}
	out := keys()
	sort.Strings(out)
	return out, nil
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
