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
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
)

const (
	appliancesPrefix = "app/"
	ownersPrefix     = "own/"
	typeInfosPrefix  = "pti/"
	aliasesPrefix    = "als/"
	requestsPrefix   = "req/"
	bridgesPrefix    = "brg/"

	badgerGCInterval     = 5 * time.Minute
	badgerGCDiscardRatio = 0.7
	// insertOwnerMaxAttempts bounds the conflict-retry loop; after a conflict
	// the re-read settles the race, so two attempts are enough in practice.
	insertOwnerMaxAttempts = 3
)

// BadgerStore implements Store using a BadgerDB backend, with one key prefix
// per collection.
//
// Badger transactions are serializable: InsertOwnerIfAbsent performs its
// check and set inside one transaction and retries on commit conflict, and
// PurgePV deletes across all three PV-keyed collections in one transaction.
type BadgerStore struct {
	db      *badger.DB
	logger  log.Logger
	stopSig chan struct{}
	closed  atomic.Bool
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore creates a BadgerDB-backed Store. When dir is nil an
// in-memory Badger instance is used; that mode loses all state on Close and
// is only appropriate for tests.
func NewBadgerStore(logger log.Logger, dir *string) (*BadgerStore, error) {
	var dbOpts badger.Options
	if dir != nil {
		dbOpts = badger.
			DefaultOptions(*dir).
			WithLogger(nil)
	} else {
		dbOpts = badger.
			DefaultOptions("").
			WithInMemory(true).
			WithCompression(options.None).
			WithBlockCacheSize(0).
			WithLogger(nil)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening badger: %w", err)
	}

	s := &BadgerStore{
		db:      db,
		logger:  logger,
		stopSig: make(chan struct{}),
	}

	// value log GC only applies to on-disk instances
	if dir != nil {
		s.runGC()
	}

	return s, nil
}

// GetAppliance returns the persisted appliance info for the identity.
func (s *BadgerStore) GetAppliance(ctx context.Context, identity string) (*model.ApplianceInfo, bool, error) {
	info := new(model.ApplianceInfo)
	found, err := s.getJSON(ctx, appliancesPrefix+identity, info)
	if err != nil || !found {
		return nil, false, err
	}
	return info, true, nil
}

// PutAppliance stores or replaces the appliance info.
func (s *BadgerStore) PutAppliance(ctx context.Context, info *model.ApplianceInfo) error {
	return s.putJSON(ctx, appliancesPrefix+info.Identity, info)
}

// DeleteAppliance removes the appliance info for the identity.
func (s *BadgerStore) DeleteAppliance(ctx context.Context, identity string) error {
	return s.delete(ctx, appliancesPrefix+identity)
}

// ListAppliances returns all persisted appliance identities, sorted.
func (s *BadgerStore) ListAppliances(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, appliancesPrefix)
}

// GetOwner returns the identity of the appliance owning the PV.
func (s *BadgerStore) GetOwner(ctx context.Context, pvName string) (string, bool, error) {
	return s.getString(ctx, ownersPrefix+pvName)
}

// PutOwner stores or replaces the PV's owner unconditionally.
func (s *BadgerStore) PutOwner(ctx context.Context, pvName string, identity string) error {
	return s.putString(ctx, ownersPrefix+pvName, identity)
}

// InsertOwnerIfAbsent atomically records the PV's owner when absent. Losing
// a commit conflict means another writer touched the key; the retried
// transaction then observes the winner and reports false.
func (s *BadgerStore) InsertOwnerIfAbsent(ctx context.Context, pvName string, identity string) (bool, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return false, err
	}

	key := []byte(ownersPrefix + pvName)
	for attempt := 0; attempt < insertOwnerMaxAttempts; attempt++ {
		inserted := false
		err := s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, badger.ErrKeyNotFound):
				inserted = true
				return txn.Set(key, []byte(identity))
			default:
				return err
			}
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("persistence: inserting owner for %q: %w", pvName, err)
		}
		return inserted, nil
	}
	return false, fmt.Errorf("persistence: inserting owner for %q: %w", pvName, badger.ErrConflict)
}

// DeleteOwner removes the PV's ownership record.
func (s *BadgerStore) DeleteOwner(ctx context.Context, pvName string) error {
	return s.delete(ctx, ownersPrefix+pvName)
}

// ListOwners returns the names of all owned PVs, sorted.
func (s *BadgerStore) ListOwners(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, ownersPrefix)
}

// GetTypeInfo returns the persisted type info for the PV.
func (s *BadgerStore) GetTypeInfo(ctx context.Context, pvName string) (*model.PVTypeInfo, bool, error) {
	info := new(model.PVTypeInfo)
	found, err := s.getJSON(ctx, typeInfosPrefix+pvName, info)
	if err != nil || !found {
		return nil, false, err
	}
	return info, true, nil
}

// PutTypeInfo stores or replaces the PV's type info.
func (s *BadgerStore) PutTypeInfo(ctx context.Context, info *model.PVTypeInfo) error {
	return s.putJSON(ctx, typeInfosPrefix+info.PVName, info)
}

// DeleteTypeInfo removes the PV's type info.
func (s *BadgerStore) DeleteTypeInfo(ctx context.Context, pvName string) error {
	return s.delete(ctx, typeInfosPrefix+pvName)
}

// ListTypeInfos returns the names of all PVs with type info, sorted.
func (s *BadgerStore) ListTypeInfos(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, typeInfosPrefix)
}

// GetAlias returns the real name the alias maps to.
func (s *BadgerStore) GetAlias(ctx context.Context, alias string) (string, bool, error) {
	return s.getString(ctx, aliasesPrefix+alias)
}

// PutAlias stores or replaces the alias mapping.
func (s *BadgerStore) PutAlias(ctx context.Context, alias string, realName string) error {
	return s.putString(ctx, aliasesPrefix+alias, realName)
}

// DeleteAlias removes the alias mapping.
func (s *BadgerStore) DeleteAlias(ctx context.Context, alias string) error {
	return s.delete(ctx, aliasesPrefix+alias)
}

// ListAliases returns all alias names, sorted.
func (s *BadgerStore) ListAliases(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, aliasesPrefix)
}

// GetArchiveRequest returns the persisted workflow entry for the PV.
func (s *BadgerStore) GetArchiveRequest(ctx context.Context, pvName string) (*model.ArchivePVRequest, bool, error) {
	request := new(model.ArchivePVRequest)
	found, err := s.getJSON(ctx, requestsPrefix+pvName, request)
	if err != nil || !found {
		return nil, false, err
	}
	return request, true, nil
}

// PutArchiveRequest stores or replaces the PV's workflow entry.
func (s *BadgerStore) PutArchiveRequest(ctx context.Context, request *model.ArchivePVRequest) error {
	return s.putJSON(ctx, requestsPrefix+request.PVName, request)
}

// DeleteArchiveRequest removes the PV's workflow entry.
func (s *BadgerStore) DeleteArchiveRequest(ctx context.Context, pvName string) error {
	return s.delete(ctx, requestsPrefix+pvName)
}

// ListArchiveRequests returns the names of all PVs with pending entries, sorted.
func (s *BadgerStore) ListArchiveRequests(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, requestsPrefix)
}

// GetBridgeServer returns the archives CSV for the bridge server URL.
func (s *BadgerStore) GetBridgeServer(ctx context.Context, serverURL string) (string, bool, error) {
	return s.getString(ctx, bridgesPrefix+serverURL)
}

// PutBridgeServer stores or replaces the bridge server entry.
func (s *BadgerStore) PutBridgeServer(ctx context.Context, serverURL string, archivesCSV string) error {
	return s.putString(ctx, bridgesPrefix+serverURL, archivesCSV)
}

// DeleteBridgeServer removes the bridge server entry.
func (s *BadgerStore) DeleteBridgeServer(ctx context.Context, serverURL string) error {
	return s.delete(ctx, bridgesPrefix+serverURL)
}

// ListBridgeServers returns all bridge server URLs, sorted.
func (s *BadgerStore) ListBridgeServers(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, bridgesPrefix)
}

// PurgePV removes the PV's ownership, type info and workflow entry in one
// transaction.
func (s *BadgerStore) PurgePV(ctx context.Context, pvName string) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, prefix := range []string{ownersPrefix, typeInfosPrefix, requestsPrefix} {
			if err := txn.Delete([]byte(prefix + pvName)); err != nil {
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

// Ping verifies that the database is open and readable.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}
	if err := s.db.View(func(*badger.Txn) error { return nil }); err != nil {
		return fmt.Errorf("persistence: pinging badger: %w", err)
	}
	return nil
}

// Close stops the GC loop and releases the database.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.stopSig)
	return s.db.Close()
}

func (s *BadgerStore) ensureOpen(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return contextErr(ctx)
}

func (s *BadgerStore) getJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, found, err := s.getRaw(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("persistence: corrupted payload for %q: %w", key, err)
	}
	return true, nil
}

func (s *BadgerStore) putJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("persistence: encoding %q: %w", key, err)
	}
	return s.putRaw(ctx, key, data)
}

func (s *BadgerStore) getString(ctx context.Context, key string) (string, bool, error) {
	raw, found, err := s.getRaw(ctx, key)
	if err != nil || !found {
		return "", false, err
	}
	return string(raw), true, nil
}

func (s *BadgerStore) putString(ctx context.Context, key string, value string) error {
	return s.putRaw(ctx, key, []byte(value))
}

func (s *BadgerStore) getRaw(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = slices.Clone(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persistence: reading %q: %w", key, err)
	}
	return value, true, nil
}

func (s *BadgerStore) putRaw(ctx context.Context, key string, value []byte) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("persistence: writing %q: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) delete(ctx context.Context, key string) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("persistence: deleting %q: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) listKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}

	// badger iterates keys in byte order, which is the sorted order we promise
	keys := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			keys = append(keys, strings.TrimPrefix(key, prefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: listing %q: %w", prefix, err)
	}
	return keys, nil
}

// runGC periodically reclaims badger value log space until the store closes.
func (s *BadgerStore) runGC() {
	go func() {
		ticker := time.NewTicker(badgerGCInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for {
					if err := s.db.RunValueLogGC(badgerGCDiscardRatio); err != nil {
						if errors.Is(err, badger.ErrNoRewrite) {
							break
						}
						s.logger.Error(fmt.Errorf("failed to run value log GC: %w", err))
						break
					}
				}
			case <-s.stopSig:
				return
			}
		}
	}()
}
