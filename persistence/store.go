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

// Package persistence defines the durable store behind the configuration
// authority and its pluggable backends.
//
// The store holds six logical collections: appliances (identity-keyed),
// PV ownership (PV-keyed), PV type info (PV-keyed), aliases (alias-keyed),
// archive-request workflow entries (PV-keyed) and external bridge servers
// (URL-keyed). Each collection supports get/put/delete/list-keys; the
// ownership collection additionally supports an atomic insert-if-absent,
// which is the cluster's sole conflict-resolution primitive for concurrent
// registrations.
package persistence

import (
	"context"

	"github.com/pvarchive/pvarchive/model"
)

// Store is the durable key/value store for the cluster configuration.
//
// Gets report absence through the boolean, never through an error; errors are
// reserved for backend failures and corrupted payloads. Deletes are
// idempotent. List methods return keys sorted lexicographically so that
// iteration order is stable across calls and across nodes.
type Store interface {
	// GetAppliance returns the persisted appliance info for the identity.
	GetAppliance(ctx context.Context, identity string) (*model.ApplianceInfo, bool, error)
	// PutAppliance stores or replaces the appliance info.
	PutAppliance(ctx context.Context, info *model.ApplianceInfo) error
	// DeleteAppliance removes the appliance info for the identity.
	DeleteAppliance(ctx context.Context, identity string) error
	// ListAppliances returns all persisted appliance identities.
	ListAppliances(ctx context.Context) ([]string, error)

	// GetOwner returns the identity of the appliance owning the PV.
	GetOwner(ctx context.Context, pvName string) (string, bool, error)
	// PutOwner stores or replaces the PV's owner unconditionally. It is
	// meant for administrative reassignment; registration must go through
	// InsertOwnerIfAbsent.
	PutOwner(ctx context.Context, pvName string, identity string) error
	// InsertOwnerIfAbsent atomically records the PV's owner if and only if
	// the PV has no owner yet. It returns false when an owner already
	// existed, in which case the stored owner is left untouched.
	InsertOwnerIfAbsent(ctx context.Context, pvName string, identity string) (bool, error)
	// DeleteOwner removes the PV's ownership record.
	DeleteOwner(ctx context.Context, pvName string) error
	// ListOwners returns the names of all owned PVs.
	ListOwners(ctx context.Context) ([]string, error)

	// GetTypeInfo returns the persisted type info for the PV.
	GetTypeInfo(ctx context.Context, pvName string) (*model.PVTypeInfo, bool, error)
	// PutTypeInfo stores or replaces the PV's type info.
	PutTypeInfo(ctx context.Context, info *model.PVTypeInfo) error
	// DeleteTypeInfo removes the PV's type info.
	DeleteTypeInfo(ctx context.Context, pvName string) error
	// ListTypeInfos returns the names of all PVs with type info.
	ListTypeInfos(ctx context.Context) ([]string, error)

	// GetAlias returns the real name the alias maps to.
	GetAlias(ctx context.Context, alias string) (string, bool, error)
	// PutAlias stores or replaces the alias mapping.
	PutAlias(ctx context.Context, alias string, realName string) error
	// DeleteAlias removes the alias mapping.
	DeleteAlias(ctx context.Context, alias string) error
	// ListAliases returns all alias names.
	ListAliases(ctx context.Context) ([]string, error)

	// GetArchiveRequest returns the persisted workflow entry for the PV.
	GetArchiveRequest(ctx context.Context, pvName string) (*model.ArchivePVRequest, bool, error)
	// PutArchiveRequest stores or replaces the PV's workflow entry.
	PutArchiveRequest(ctx context.Context, request *model.ArchivePVRequest) error
	// DeleteArchiveRequest removes the PV's workflow entry.
	DeleteArchiveRequest(ctx context.Context, pvName string) error
	// ListArchiveRequests returns the names of all PVs with pending entries.
	ListArchiveRequests(ctx context.Context) ([]string, error)

	// GetBridgeServer returns the archives CSV for the bridge server URL.
	GetBridgeServer(ctx context.Context, serverURL string) (string, bool, error)
	// PutBridgeServer stores or replaces the bridge server entry.
	PutBridgeServer(ctx context.Context, serverURL string, archivesCSV string) error
	// DeleteBridgeServer removes the bridge server entry.
	DeleteBridgeServer(ctx context.Context, serverURL string) error
	// ListBridgeServers returns all bridge server URLs.
	ListBridgeServers(ctx context.Context) ([]string, error)

	// PurgePV removes the PV's ownership, type info and workflow entry in a
	// single backend transaction. Either all three are gone afterwards or,
	// on error, none of them changed; a partially removed PV must be
	// impossible.
	PurgePV(ctx context.Context, pvName string) error

	// Ping verifies that the backend is reachable and serving requests.
	Ping(ctx context.Context) error

	// Close releases the backend. The store must not be used afterwards.
	Close() error
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
