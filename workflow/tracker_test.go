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

package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvarchive/pvarchive/internal/keylock"
	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
	"github.com/pvarchive/pvarchive/persistence"
)

func newTestTracker(store persistence.Store, release Releaser) *Tracker {
	return NewTracker(log.DiscardLogger, store, keylock.New(0), release)
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	tracker := newTestTracker(store, nil)

	params := &model.UserSpecifiedSamplingParams{Overridden: true, SamplingPeriod: 5}
	require.NoError(t, tracker.Add(ctx, "ISRC:QUAD:1:Fld", params))

	assert.True(t, tracker.IsPending("ISRC:QUAD:1:Fld"))
	entry, found := tracker.Entry("ISRC:QUAD:1:Fld")
	require.True(t, found)
	assert.Equal(t, model.StateRequested, entry.State)
	assert.Equal(t, 5.0, entry.Params.SamplingPeriod)
	assert.False(t, entry.QueuedAt.IsZero())

	// the entry is persisted
	persisted, found, err := store.GetArchiveRequest(ctx, "ISRC:QUAD:1:Fld")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.StateRequested, persisted.State)

	t.Run("With idempotent re-add", func(t *testing.T) {
		require.NoError(t, tracker.MarkPolicyComputed(ctx, "ISRC:QUAD:1:Fld"))

		// re-adding neither restarts the workflow nor replaces the params
		other := &model.UserSpecifiedSamplingParams{Overridden: true, SamplingPeriod: 60}
		require.NoError(t, tracker.Add(ctx, "ISRC:QUAD:1:Fld", other))

		entry, found := tracker.Entry("ISRC:QUAD:1:Fld")
		require.True(t, found)
		assert.Equal(t, model.StatePolicyComputed, entry.State)
		assert.Equal(t, 5.0, entry.Params.SamplingPeriod)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(persistence.NewMemoryStore(), nil)

	t.Run("With absent request", func(t *testing.T) {
		err := tracker.Update(ctx, "ISRC:QUAD:1:Fld", &model.UserSpecifiedSamplingParams{})
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("With in-flight request", func(t *testing.T) {
		require.NoError(t, tracker.Add(ctx, "ISRC:QUAD:1:Fld", nil))
		params := &model.UserSpecifiedSamplingParams{Overridden: true, PolicyName: "FastScalar"}
		require.NoError(t, tracker.Update(ctx, "ISRC:QUAD:1:Fld", params))

		got, found := tracker.Params("ISRC:QUAD:1:Fld")
		require.True(t, found)
		assert.Equal(t, "FastScalar", got.PolicyName)
	})
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(persistence.NewMemoryStore(), nil)
	require.NoError(t, tracker.Add(ctx, "ISRC:QUAD:1:Fld", nil))

	t.Run("With stage skipped", func(t *testing.T) {
		err := tracker.MarkOwnerAssigned(ctx, "ISRC:QUAD:1:Fld")
		assert.ErrorIs(t, err, ErrWorkflowStateViolation)
	})

	t.Run("With forward progress", func(t *testing.T) {
		require.NoError(t, tracker.MarkPolicyComputed(ctx, "ISRC:QUAD:1:Fld"))
		entry, _ := tracker.Entry("ISRC:QUAD:1:Fld")
		assert.Equal(t, model.StatePolicyComputed, entry.State)

		require.NoError(t, tracker.MarkOwnerAssigned(ctx, "ISRC:QUAD:1:Fld"))
		entry, _ = tracker.Entry("ISRC:QUAD:1:Fld")
		assert.Equal(t, model.StateOwnerAssigned, entry.State)
	})

	t.Run("With repeated transition", func(t *testing.T) {
		err := tracker.MarkOwnerAssigned(ctx, "ISRC:QUAD:1:Fld")
		assert.ErrorIs(t, err, ErrWorkflowStateViolation)
	})

	t.Run("With unknown PV", func(t *testing.T) {
		err := tracker.MarkPolicyComputed(ctx, "ISRC:NO:SUCH:PV")
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestCompleted(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	tracker := newTestTracker(store, nil)

	require.NoError(t, tracker.Add(ctx, "ISRC:QUAD:1:Fld", nil))
	require.NoError(t, tracker.MarkPolicyComputed(ctx, "ISRC:QUAD:1:Fld"))
	require.NoError(t, tracker.MarkOwnerAssigned(ctx, "ISRC:QUAD:1:Fld"))

	require.NoError(t, tracker.Completed(ctx, "ISRC:QUAD:1:Fld"))
	assert.False(t, tracker.IsPending("ISRC:QUAD:1:Fld"))

	_, found, err := store.GetArchiveRequest(ctx, "ISRC:QUAD:1:Fld")
	require.NoError(t, err)
	assert.False(t, found)

	t.Run("With absent request", func(t *testing.T) {
		err := tracker.Completed(ctx, "ISRC:QUAD:1:Fld")
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestAbort(t *testing.T) {
	t.Run("With no owner assigned", func(t *testing.T) {
		ctx := context.Background()
		released := make([]string, 0)
		tracker := newTestTracker(persistence.NewMemoryStore(), func(_ context.Context, pvName string) error {
			released = append(released, pvName)
			return nil
		})

		require.NoError(t, tracker.Add(ctx, "ISRC:QUAD:1:Fld", nil))
		require.NoError(t, tracker.Abort(ctx, "ISRC:QUAD:1:Fld"))

		assert.False(t, tracker.IsPending("ISRC:QUAD:1:Fld"))
		// no ownership existed, nothing to release
		assert.Empty(t, released)
	})

	t.Run("With owner assigned", func(t *testing.T) {
		ctx := context.Background()
		released := make([]string, 0)
		tracker := newTestTracker(persistence.NewMemoryStore(), func(_ context.Context, pvName string) error {
			released = append(released, pvName)
			return nil
		})

		require.NoError(t, tracker.Add(ctx, "ISRC:QUAD:1:Fld", nil))
		require.NoError(t, tracker.MarkPolicyComputed(ctx, "ISRC:QUAD:1:Fld"))
		require.NoError(t, tracker.MarkOwnerAssigned(ctx, "ISRC:QUAD:1:Fld"))

		require.NoError(t, tracker.Abort(ctx, "ISRC:QUAD:1:Fld"))
		assert.False(t, tracker.IsPending("ISRC:QUAD:1:Fld"))
		assert.Equal(t, []string{"ISRC:QUAD:1:Fld"}, released)
	})

	t.Run("With absent request", func(t *testing.T) {
		ctx := context.Background()
		tracker := newTestTracker(persistence.NewMemoryStore(), nil)
		err := tracker.Abort(ctx, "ISRC:NO:SUCH:PV")
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestPendingListing(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(persistence.NewMemoryStore(), nil)

	require.NoError(t, tracker.Add(ctx, "ISRC:VAC:2", nil))
	require.NoError(t, tracker.Add(ctx, "ISRC:BEAM:1", nil))
	require.NoError(t, tracker.Add(ctx, "ISRC:QUAD:9", nil))

	assert.Equal(t, []string{"ISRC:BEAM:1", "ISRC:QUAD:9", "ISRC:VAC:2"}, tracker.Pending())
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()

	first := newTestTracker(store, nil)
	require.NoError(t, first.Add(ctx, "ISRC:QUAD:1:Fld", &model.UserSpecifiedSamplingParams{Overridden: true, PolicyName: "FastScalar"}))
	require.NoError(t, first.MarkPolicyComputed(ctx, "ISRC:QUAD:1:Fld"))

	// a fresh tracker over the same store starts empty until loaded
	second := newTestTracker(store, nil)
	assert.False(t, second.IsPending("ISRC:QUAD:1:Fld"))

	require.NoError(t, second.Load(ctx))
	require.True(t, second.IsPending("ISRC:QUAD:1:Fld"))
	entry, found := second.Entry("ISRC:QUAD:1:Fld")
	require.True(t, found)
	assert.Equal(t, model.StatePolicyComputed, entry.State)
	assert.Equal(t, "FastScalar", entry.Params.PolicyName)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	tracker := newTestTracker(store, nil)

	require.NoError(t, tracker.Add(ctx, "ISRC:QUAD:1:Fld", nil))
	tracker.Forget("ISRC:QUAD:1:Fld")

	assert.False(t, tracker.IsPending("ISRC:QUAD:1:Fld"))
	// only the in-memory view is dropped; the purge owns the store removal
	_, found, err := store.GetArchiveRequest(ctx, "ISRC:QUAD:1:Fld")
	require.NoError(t, err)
	assert.True(t, found)
}
