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

// Package workflow tracks archive requests from the initial user ask to
// confirmed archiving.
//
// A request moves REQUESTED, POLICY_COMPUTED, OWNER_ASSIGNED and leaves the
// tracker when archiving is confirmed or the request is aborted. Entries are
// persisted on every change and reloaded at startup, so an onboarding
// interrupted by a crash resumes where it stopped.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/pvarchive/pvarchive/internal/keylock"
	"github.com/pvarchive/pvarchive/internal/syncmap"
	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
	"github.com/pvarchive/pvarchive/persistence"
)

// Releaser undoes the partial ownership and type info of an aborted request.
// It matches the resolver's Unregister.
type Releaser func(ctx context.Context, pvName string) error

// Tracker is the archive-request workflow state machine.
//
// Methods serialize per PV through the shared key lock; the lock is never
// held across a Releaser call, which acquires it again on its own.
type Tracker struct {
	logger  log.Logger
	store   persistence.Store
	locks   *keylock.KeyLock
	release Releaser

	pending mapset.Set[string]
	entries *syncmap.SyncMap[string, *model.ArchivePVRequest]
}

// NewTracker creates a Tracker. The release function is invoked when a
// request with an assigned owner is aborted; a nil release skips that
// cleanup.
func NewTracker(logger log.Logger, store persistence.Store, locks *keylock.KeyLock, release Releaser) *Tracker {
	return &Tracker{
		logger:  logger,
		store:   store,
		locks:   locks,
		release: release,
		pending: mapset.NewSet[string](),
		entries: syncmap.New[string, *model.ArchivePVRequest](),
	}
}

// Load seeds the pending set from the store. It is called once during
// startup so that in-flight requests survive a restart.
func (t *Tracker) Load(ctx context.Context) error {
	pvNames, err := t.store.ListArchiveRequests(ctx)
	if err != nil {
		return err
	}
	for _, pvName := range pvNames {
		entry, found, err := t.store.GetArchiveRequest(ctx, pvName)
		if err != nil {
			return err
		}
		if found {
			t.entries.Set(pvName, entry)
			t.pending.Add(pvName)
		}
	}
	t.logger.Infof("reloaded %d pending archive requests", t.pending.Cardinality())
	return nil
}

// Add queues an archive request for the PV in the REQUESTED stage. Adding a
// PV that is already in flight is a no-op; the existing entry, whatever its
// stage, is left untouched.
func (t *Tracker) Add(ctx context.Context, pvName string, params *model.UserSpecifiedSamplingParams) error {
	t.locks.Lock(pvName)
	defer t.locks.Unlock(pvName)

	if _, exists := t.entries.Get(pvName); exists {
		return nil
	}

	now := time.Now()
	entry := &model.ArchivePVRequest{
		PVName:         pvName,
		Params:         params.Clone(),
		State:          model.StateRequested,
		QueuedAt:       now,
		LastTransition: now,
	}
	if err := t.store.PutArchiveRequest(ctx, entry); err != nil {
		return err
	}
	t.entries.Set(pvName, entry)
	t.pending.Add(pvName)
	t.logger.Debugf("queued archive request for PV=(%s)", pvName)
	return nil
}

// Update replaces the user params of an in-flight request. Unlike Add it
// never creates an entry; updating an absent request fails with
// ErrRequestNotFound.
func (t *Tracker) Update(ctx context.Context, pvName string, params *model.UserSpecifiedSamplingParams) error {
	t.locks.Lock(pvName)
	defer t.locks.Unlock(pvName)

	entry, exists := t.entries.Get(pvName)
	if !exists {
		return fmt.Errorf("%w: pv=%s", ErrRequestNotFound, pvName)
	}

	updated := entry.Clone()
	updated.Params = params.Clone()
	if err := t.store.PutArchiveRequest(ctx, updated); err != nil {
		return err
	}
	t.entries.Set(pvName, updated)
	return nil
}

// MarkPolicyComputed advances the request from REQUESTED to POLICY_COMPUTED.
func (t *Tracker) MarkPolicyComputed(ctx context.Context, pvName string) error {
	return t.transition(ctx, pvName, model.StatePolicyComputed)
}

// MarkOwnerAssigned advances the request from POLICY_COMPUTED to
// OWNER_ASSIGNED.
func (t *Tracker) MarkOwnerAssigned(ctx context.Context, pvName string) error {
	return t.transition(ctx, pvName, model.StateOwnerAssigned)
}

// Completed removes the request from the workflow. Confirmation of the first
// archived sample is observed by the ingestion side, not computed here, so
// any in-flight entry may be completed regardless of stage.
func (t *Tracker) Completed(ctx context.Context, pvName string) error {
	t.locks.Lock(pvName)
	defer t.locks.Unlock(pvName)

	entry, exists := t.entries.Get(pvName)
	if !exists {
		return fmt.Errorf("%w: pv=%s", ErrRequestNotFound, pvName)
	}
	if err := t.store.DeleteArchiveRequest(ctx, pvName); err != nil {
		return err
	}
	t.forget(pvName)
	t.logger.Debugf("archive request for PV=(%s) completed from stage=(%s)", pvName, entry.State)
	return nil
}

// Abort cancels an in-flight request. When an owner was already assigned the
// release function undoes the partial ownership and type info; earlier
// stages only drop the entry.
func (t *Tracker) Abort(ctx context.Context, pvName string) error {
	t.locks.Lock(pvName)
	entry, exists := t.entries.Get(pvName)
	if !exists {
		t.locks.Unlock(pvName)
		return fmt.Errorf("%w: pv=%s", ErrRequestNotFound, pvName)
	}

	if err := t.store.DeleteArchiveRequest(ctx, pvName); err != nil {
		t.locks.Unlock(pvName)
		return err
	}
	t.forget(pvName)
	needsRelease := entry.State == model.StateOwnerAssigned && t.release != nil
	t.locks.Unlock(pvName)

	// the release acquires the per-PV lock itself, so it must run unlocked
	if needsRelease {
		if err := t.release(ctx, pvName); err != nil {
			return fmt.Errorf("aborting %s: releasing ownership: %w", pvName, err)
		}
	}
	t.logger.Infof("aborted archive request for PV=(%s) at stage=(%s)", pvName, entry.State)
	return nil
}

// Forget drops the PV from the in-memory pending set without touching the
// store. It is registered as the resolver's forget callback so that an
// unregistered PV disappears from the workflow as part of the same purge.
func (t *Tracker) Forget(pvName string) {
	t.forget(pvName)
}

// Pending returns the names of all in-flight requests, sorted.
func (t *Tracker) Pending() []string {
	pvNames := t.pending.ToSlice()
	sort.Strings(pvNames)
	return pvNames
}

// IsPending reports whether the PV has an in-flight request.
func (t *Tracker) IsPending(pvName string) bool {
	return t.pending.Contains(pvName)
}

// Params returns the user params of the PV's in-flight request.
func (t *Tracker) Params(pvName string) (*model.UserSpecifiedSamplingParams, bool) {
	entry, exists := t.entries.Get(pvName)
	if !exists {
		return nil, false
	}
	return entry.Params.Clone(), true
}

// Entry returns a copy of the PV's in-flight request.
func (t *Tracker) Entry(pvName string) (*model.ArchivePVRequest, bool) {
	entry, exists := t.entries.Get(pvName)
	if !exists {
		return nil, false
	}
	return entry.Clone(), true
}

func (t *Tracker) transition(ctx context.Context, pvName string, next model.WorkflowState) error {
	t.locks.Lock(pvName)
	defer t.locks.Unlock(pvName)

	entry, exists := t.entries.Get(pvName)
	if !exists {
		return fmt.Errorf("%w: pv=%s", ErrRequestNotFound, pvName)
	}
	if !entry.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: pv=%s %s -> %s", ErrWorkflowStateViolation, pvName, entry.State, next)
	}

	updated := entry.Clone()
	updated.State = next
	updated.LastTransition = time.Now()
	if err := t.store.PutArchiveRequest(ctx, updated); err != nil {
		return err
	}
	t.entries.Set(pvName, updated)
	t.logger.Debugf("archive request for PV=(%s) moved to stage=(%s)", pvName, next)
	return nil
}

func (t *Tracker) forget(pvName string) {
	t.entries.Delete(pvName)
	t.pending.Remove(pvName)
}
