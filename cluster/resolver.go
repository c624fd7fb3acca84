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

// Package cluster maintains the appliance membership list and the PV to
// appliance ownership map.
//
// Membership comes from a shared descriptor file that every member must read
// identically; the list order is the definition order and is stable across
// calls and across nodes. Ownership is flat bookkeeping: assignment decisions
// are made elsewhere and recorded here, with the persistence layer's atomic
// insert as the sole cross-node conflict-resolution primitive.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pvarchive/pvarchive/internal/keylock"
	"github.com/pvarchive/pvarchive/internal/syncmap"
	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
	"github.com/pvarchive/pvarchive/persistence"
)

// Resolver answers "who owns PV X" and "what does appliance Y own" and
// records ownership changes.
//
// Reads are served from an in-memory map seeded from the store at startup.
// Writes go to the store first; the map is updated only after the store
// accepted the change, so the map never claims ownership the cluster does
// not have. Two nodes may transiently disagree about a PV's owner during a
// registration race; the ErrAlreadyRegistered failure on the losing call is
// the conflict signal.
type Resolver struct {
	logger   log.Logger
	store    persistence.Store
	locks    *keylock.KeyLock
	identity string

	members    []*model.ApplianceInfo
	byIdentity map[string]*model.ApplianceInfo

	// owners maps PV name to owning appliance identity
	owners *syncmap.SyncMap[string, string]

	forgetMu sync.RWMutex
	forgets  []func(pvName string)

	registerMu sync.RWMutex
	registers  []func(pvName string, info *model.ApplianceInfo)
}

// NewResolver creates a Resolver for the given member list.
//
// The members slice keeps its definition order. The local identity must be
// one of the members; refusing to start otherwise keeps a misconfigured node
// from joining under a name the rest of the cluster does not know.
func NewResolver(logger log.Logger, store persistence.Store, locks *keylock.KeyLock, members []*model.ApplianceInfo, identity string) (*Resolver, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	byIdentity := make(map[string]*model.ApplianceInfo, len(members))
	for _, member := range members {
		if _, exists := byIdentity[member.Identity]; exists {
			return nil, fmt.Errorf("cluster: duplicate appliance identity %q", member.Identity)
		}
		byIdentity[member.Identity] = member
	}

	if _, ok := byIdentity[identity]; !ok {
		return nil, fmt.Errorf("%w: identity=%s", ErrNotAMember, identity)
	}

	return &Resolver{
		logger:     logger,
		store:      store,
		locks:      locks,
		identity:   identity,
		members:    members,
		byIdentity: byIdentity,
		owners:     syncmap.New[string, string](),
	}, nil
}

// Load seeds the ownership map from the store. It is called once during
// startup, before the resolver starts answering queries.
func (r *Resolver) Load(ctx context.Context) error {
	pvNames, err := r.store.ListOwners(ctx)
	if err != nil {
		return err
	}

	r.owners.Reset()
	for _, pvName := range pvNames {
		identity, found, err := r.store.GetOwner(ctx, pvName)
		if err != nil {
			return err
		}
		if found {
			r.owners.Set(pvName, identity)
		}
	}

	r.logger.Infof("loaded %d PV ownership records", r.owners.Len())
	return nil
}

// Appliances returns the cluster members in definition order.
func (r *Resolver) Appliances() []*model.ApplianceInfo {
	out := make([]*model.ApplianceInfo, 0, len(r.members))
	for _, member := range r.members {
		out = append(out, member.Clone())
	}
	return out
}

// Appliance returns the member with the given identity.
func (r *Resolver) Appliance(identity string) (*model.ApplianceInfo, bool) {
	member, ok := r.byIdentity[identity]
	if !ok {
		return nil, false
	}
	return member.Clone(), true
}

// MyAppliance returns the local member.
func (r *Resolver) MyAppliance() *model.ApplianceInfo {
	return r.byIdentity[r.identity].Clone()
}

// OwnerOf returns the appliance owning the PV. An unassigned PV is a valid,
// expected state reported through the boolean, never an error.
func (r *Resolver) OwnerOf(pvName string) (*model.ApplianceInfo, bool) {
	identity, ok := r.owners.Get(pvName)
	if !ok {
		return nil, false
	}
	member, ok := r.byIdentity[identity]
	if !ok {
		// owner recorded for an appliance no longer in the descriptor
		return nil, false
	}
	return member.Clone(), true
}

// Register records the appliance as the PV's owner. It fails with
// ErrAlreadyRegistered when the PV already has an owner, never silently
// clobbering it; under concurrent registrations for the same PV exactly one
// caller succeeds.
func (r *Resolver) Register(ctx context.Context, pvName string, info *model.ApplianceInfo) error {
	member, ok := r.byIdentity[info.Identity]
	if !ok {
		return fmt.Errorf("%w: identity=%s", ErrUnknownAppliance, info.Identity)
	}

	r.locks.Lock(pvName)
	defer r.locks.Unlock(pvName)

	inserted, err := r.store.InsertOwnerIfAbsent(ctx, pvName, member.Identity)
	if err != nil {
		return err
	}
	if !inserted {
		// lost the race: learn the winner so local answers converge
		if identity, found, err := r.store.GetOwner(ctx, pvName); err == nil && found {
			r.owners.Set(pvName, identity)
		}
		return fmt.Errorf("%w: pv=%s", ErrAlreadyRegistered, pvName)
	}

	r.owners.Set(pvName, member.Identity)

	r.registerMu.RLock()
	callbacks := r.registers
	r.registerMu.RUnlock()
	owner := member.Clone()
	for _, callback := range callbacks {
		callback(pvName, owner)
	}

	r.logger.Debugf("registered PV=(%s) to appliance=(%s)", pvName, member.Identity)
	return nil
}

// Unregister removes the PV's ownership together with its type info and any
// pending workflow entry. The three records go in one store transaction;
// a PV half-removed from the cluster must be impossible. Registered forget
// callbacks run after the removal so caches drop the PV as part of the same
// per-PV critical section.
func (r *Resolver) Unregister(ctx context.Context, pvName string) error {
	r.locks.Lock(pvName)
	defer r.locks.Unlock(pvName)

	if err := r.store.PurgePV(ctx, pvName); err != nil {
		return err
	}
	r.owners.Delete(pvName)

	r.forgetMu.RLock()
	forgets := r.forgets
	r.forgetMu.RUnlock()
	for _, forget := range forgets {
		forget(pvName)
	}

	r.logger.Debugf("unregistered PV=(%s)", pvName)
	return nil
}

// PVsOwnedBy returns the names of the PVs owned by the appliance, sorted.
func (r *Resolver) PVsOwnedBy(info *model.ApplianceInfo) []string {
	pvNames := make([]string, 0)
	r.owners.Range(func(pvName string, identity string) {
		if identity == info.Identity {
			pvNames = append(pvNames, pvName)
		}
	})
	sort.Strings(pvNames)
	return pvNames
}

// AllPVs returns the names of all owned PVs in the cluster, sorted.
func (r *Resolver) AllPVs() []string {
	pvNames := r.owners.Keys()
	sort.Strings(pvNames)
	return pvNames
}

// OnForget registers a callback invoked with the PV name whenever a PV is
// unregistered. Callbacks must be fast, must not block and must not call
// back into the resolver.
func (r *Resolver) OnForget(fn func(pvName string)) {
	r.forgetMu.Lock()
	r.forgets = append(r.forgets, fn)
	r.forgetMu.Unlock()
}

// OnRegister registers a callback invoked with the PV name and its new
// owner after a successful registration, inside the PV's critical section.
// The same restrictions as OnForget callbacks apply.
func (r *Resolver) OnRegister(fn func(pvName string, info *model.ApplianceInfo)) {
	r.registerMu.Lock()
	r.registers = append(r.registers, fn)
	r.registerMu.Unlock()
}
