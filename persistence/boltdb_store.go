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
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/pvarchive/pvarchive/model"
)

const boltFileMode os.FileMode = 0o600

var (
	boltTimeout        = 5 * time.Second
	defaultBoltOptions = &bbolt.Options{Timeout: boltTimeout, NoGrowSync: true}

	appliancesBucket = []byte("appliances")
	ownersBucket     = []byte("pv_owners")
	typeInfosBucket  = []byte("pv_type_infos")
	aliasesBucket    = []byte("aliases")
	requestsBucket   = []byte("archive_requests")
	bridgesBucket    = []byte("bridge_servers")

	allBuckets = [][]byte{
		appliancesBucket,
		ownersBucket,
		typeInfosBucket,
		aliasesBucket,
		requestsBucket,
		bridgesBucket,
	}
)

// BoltStore implements Store using go.etcd.io/bbolt for durable persistence,
// with one bucket per collection.
//
// Concurrency:
//   - bbolt provides single-writer/multi-reader semantics. A single Update
//     transaction therefore gives InsertOwnerIfAbsent its check-then-set
//     atomicity and PurgePV its all-or-nothing removal across buckets.
//   - Only the close state is guarded here, to prevent operations once the
//     store is shut down.
//
// The database file is the canonical cluster configuration; Close releases
// the handle but never deletes the file.
type BoltStore struct {
	db     *bbolt.DB
	path   string
	closed atomic.Bool
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) a BoltDB-backed Store at the given path and
// initializes the collection buckets. The database is opened with a short
// timeout to avoid blocking on locked files.
func NewBoltStore(path string) (*BoltStore, error) {
	optionsCopy := *defaultBoltOptions
	db, err := bbolt.Open(path, boltFileMode, &optionsCopy)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening boltdb: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, e := tx.CreateBucketIfNotExists(bucket); e != nil {
				return e
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: initializing boltdb buckets: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// GetAppliance returns the persisted appliance info for the identity.
func (s *BoltStore) GetAppliance(ctx context.Context, identity string) (*model.ApplianceInfo, bool, error) {
	info := new(model.ApplianceInfo)
	found, err := s.getJSON(ctx, appliancesBucket, identity, info)
	if err != nil || !found {
		return nil, false, err
	}
	return info, true, nil
}

// PutAppliance stores or replaces the appliance info.
func (s *BoltStore) PutAppliance(ctx context.Context, info *model.ApplianceInfo) error {
	return s.putJSON(ctx, appliancesBucket, info.Identity, info)
}

// DeleteAppliance removes the appliance info for the identity.
func (s *BoltStore) DeleteAppliance(ctx context.Context, identity string) error {
	return s.delete(ctx, appliancesBucket, identity)
}

// ListAppliances returns all persisted appliance identities, sorted.
func (s *BoltStore) ListAppliances(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, appliancesBucket)
}

// GetOwner returns the identity of the appliance owning the PV.
func (s *BoltStore) GetOwner(ctx context.Context, pvName string) (string, bool, error) {
	return s.getString(ctx, ownersBucket, pvName)
}

// PutOwner stores or replaces the PV's owner unconditionally.
func (s *BoltStore) PutOwner(ctx context.Context, pvName string, identity string) error {
	return s.putString(ctx, ownersBucket, pvName, identity)
}

// InsertOwnerIfAbsent atomically records the PV's owner when absent. The
// check and the put share one write transaction, so concurrent registrations
// for the same PV serialize on bbolt's single writer and exactly one wins.
func (s *BoltStore) InsertOwnerIfAbsent(ctx context.Context, pvName string, identity string) (bool, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return false, err
	}

	inserted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(ownersBucket)
		if bucket == nil {
			return fmt.Errorf("persistence: bucket %q missing", ownersBucket)
		}
		if bucket.Get([]byte(pvName)) != nil {
			return nil
		}
		inserted = true
		return bucket.Put([]byte(pvName), []byte(identity))
	})
	if err != nil {
		return false, fmt.Errorf("persistence: inserting owner for %q: %w", pvName, err)
	}
	return inserted, nil
}

// DeleteOwner removes the PV's ownership record.
func (s *BoltStore) DeleteOwner(ctx context.Context, pvName string) error {
	return s.delete(ctx, ownersBucket, pvName)
}

// ListOwners returns the names of all owned PVs, sorted.
func (s *BoltStore) ListOwners(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, ownersBucket)
}

// GetTypeInfo returns the persisted type info for the PV.
func (s *BoltStore) GetTypeInfo(ctx context.Context, pvName string) (*model.PVTypeInfo, bool, error) {
	info := new(model.PVTypeInfo)
	found, err := s.getJSON(ctx, typeInfosBucket, pvName, info)
	if err != nil || !found {
		return nil, false, err
	}
	return info, true, nil
}

// PutTypeInfo stores or replaces the PV's type info.
func (s *BoltStore) PutTypeInfo(ctx context.Context, info *model.PVTypeInfo) error {
	return s.putJSON(ctx, typeInfosBucket, info.PVName, info)
}

// DeleteTypeInfo removes the PV's type info.
func (s *BoltStore) DeleteTypeInfo(ctx context.Context, pvName string) error {
	return s.delete(ctx, typeInfosBucket, pvName)
}

// ListTypeInfos returns the names of all PVs with type info, sorted.
func (s *BoltStore) ListTypeInfos(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, typeInfosBucket)
}

// GetAlias returns the real name the alias maps to.
func (s *BoltStore) GetAlias(ctx context.Context, alias string) (string, bool, error) {
	return s.getString(ctx, aliasesBucket, alias)
}

// PutAlias stores or replaces the alias mapping.
func (s *BoltStore) PutAlias(ctx context.Context, alias string, realName string) error {
	return s.putString(ctx, aliasesBucket, alias, realName)
}

// DeleteAlias removes the alias mapping.
func (s *BoltStore) DeleteAlias(ctx context.Context, alias string) error {
	return s.delete(ctx, aliasesBucket, alias)
}

// ListAliases returns all alias names, sorted.
func (s *BoltStore) ListAliases(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, aliasesBucket)
}

// GetArchiveRequest returns the persisted workflow entry for the PV.
func (s *BoltStore) GetArchiveRequest(ctx context.Context, pvName string) (*model.ArchivePVRequest, bool, error) {
	request := new(model.ArchivePVRequest)
	found, err := s.getJSON(ctx, requestsBucket, pvName, request)
	if err != nil || !found {
		return nil, false, err
	}
	return request, true, nil
}

// PutArchiveRequest stores or replaces the PV's workflow entry.
func (s *BoltStore) PutArchiveRequest(ctx context.Context, request *model.ArchivePVRequest) error {
	return s.putJSON(ctx, requestsBucket, request.PVName, request)
}

// DeleteArchiveRequest removes the PV's workflow entry.
func (s *BoltStore) DeleteArchiveRequest(ctx context.Context, pvName string) error {
	return s.delete(ctx, requestsBucket, pvName)
}

// ListArchiveRequests returns the names of all PVs with pending entries, sorted.
func (s *BoltStore) ListArchiveRequests(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, requestsBucket)
}

// GetBridgeServer returns the archives CSV for the bridge server URL.
func (s *BoltStore) GetBridgeServer(ctx context.Context, serverURL string) (string, bool, error) {
	return s.getString(ctx, bridgesBucket, serverURL)
}

// PutBridgeServer stores or replaces the bridge server entry.
func (s *BoltStore) PutBridgeServer(ctx context.Context, serverURL string, archivesCSV string) error {
	return s.putString(ctx, bridgesBucket, serverURL, archivesCSV)
}

// DeleteBridgeServer removes the bridge server entry.
func (s *BoltStore) DeleteBridgeServer(ctx context.Context, serverURL string) error {
	return s.delete(ctx, bridgesBucket, serverURL)
}

// ListBridgeServers returns all bridge server URLs, sorted.
func (s *BoltStore) ListBridgeServers(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, bridgesBucket)
}

// PurgePV removes the PV's ownership, type info and workflow entry in one
// write transaction, so the removal commits or rolls back as a unit.
func (s *BoltStore) PurgePV(ctx context.Context, pvName string) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{ownersBucket, typeInfosBucket, requestsBucket} {
			bucket := tx.Bucket(name)
			if bucket == nil {
				return fmt.Errorf("persistence: bucket %q missing", name)
			}
			if err := bucket.Delete([]byte(pvName)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persistence: purging %q: %w", pvName, err)
	}
	return nil
}

// Ping verifies that the database handle is open and readable.
func (s *BoltStore) Ping(ctx context.Context) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}
	if err := s.db.View(func(*bbolt.Tx) error { return nil }); err != nil {
		return fmt.Errorf("persistence: pinging boltdb: %w", err)
	}
	return nil
}

// Close releases the underlying BoltDB handle. The backing file is left in
// place; it is the durable cluster configuration.
func (s *BoltStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the backing database file.
func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) ensureOpen(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return contextErr(ctx)
}

func (s *BoltStore) getJSON(ctx context.Context, bucketName []byte, key string, out any) (bool, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return false, err
	}

	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("persistence: bucket %q missing", bucketName)
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("corrupted payload for %q: %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("persistence: reading %q: %w", key, err)
	}
	return found, nil
}

func (s *BoltStore) putJSON(ctx context.Context, bucketName []byte, key string, value any) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("persistence: encoding %q: %w", key, err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("persistence: bucket %q missing", bucketName)
		}
		return bucket.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("persistence: writing %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) getString(ctx context.Context, bucketName []byte, key string) (string, bool, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return "", false, err
	}

	var value string
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("persistence: bucket %q missing", bucketName)
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		value = string(raw)
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("persistence: reading %q: %w", key, err)
	}
	return value, found, nil
}

func (s *BoltStore) putString(ctx context.Context, bucketName []byte, key string, value string) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("persistence: bucket %q missing", bucketName)
		}
		return bucket.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("persistence: writing %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) delete(ctx context.Context, bucketName []byte, key string) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("persistence: bucket %q missing", bucketName)
		}
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("persistence: deleting %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) listKeys(ctx context.Context, bucketName []byte) ([]string, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}

	// bbolt iterates keys in byte order, which is the sorted order we promise.
	keys := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("persistence: bucket %q missing", bucketName)
		}
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: listing %q: %w", bucketName, err)
	}
	return keys, nil
}
