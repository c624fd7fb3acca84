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

// Package bridge tracks legacy read-only Channel Archiver data servers and
// the PV coverage their archive indexes report.
//
// The bridge is a fallback data source only. It sits entirely outside the
// PV ownership model: a PV covered by a bridge server is not owned, not
// sampled and not part of any workflow. Retrieval consults the coverage map
// to proxy requests for data older than what the cluster itself archived.
package bridge

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"

	"github.com/pvarchive/pvarchive/internal/syncmap"
	"github.com/pvarchive/pvarchive/internal/validation"
	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
	"github.com/pvarchive/pvarchive/persistence"
)

const (
	// DefaultRefreshInterval is how often the coverage map is re-fetched
	// when no explicit interval is configured. Legacy indexes change
	// rarely, so a daily sweep is plenty.
	DefaultRefreshInterval = 24 * time.Hour

	// defaultStopTimeout bounds the wait for an in-flight refresh during
	// shutdown.
	defaultStopTimeout = 3 * time.Second
)

// Registry is the system of record for external data servers and an
// in-memory index of the PV coverage fetched from them.
//
// The server list is persisted; coverage is not. Coverage is rebuilt by
// fetching each server's archive indexes, either on demand or on the
// periodic refresh schedule, and a server whose fetch fails keeps the
// coverage it reported last time.
type Registry struct {
	// mu serializes scheduler start and stop
	mu     sync.Mutex
	logger log.Logger
	store  persistence.Store

	fetcher     Fetcher
	interval    time.Duration
	stopTimeout time.Duration

	quartzScheduler quartz.Scheduler
	started         *atomic.Bool

	// servers maps server URL to the CSV of archive indexes on it
	servers *syncmap.SyncMap[string, string]

	coverageMu sync.RWMutex
	coverage   map[string][]model.ChannelArchiverDataServerPVInfo
}

// Option configures a Registry.
type Option func(registry *Registry)

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(fetcher Fetcher) Option {
	return func(registry *Registry) {
		registry.fetcher = fetcher
	}
}

// WithRefreshInterval sets the period of the background coverage refresh.
func WithRefreshInterval(interval time.Duration) Option {
	return func(registry *Registry) {
		registry.interval = interval
	}
}

// WithStopTimeout sets how long Stop waits for an in-flight refresh.
func WithStopTimeout(timeout time.Duration) Option {
	return func(registry *Registry) {
		registry.stopTimeout = timeout
	}
}

// NewRegistry creates a Registry backed by the given store. Call Load to
// seed the server list and Start to schedule the periodic refresh.
func NewRegistry(logger log.Logger, store persistence.Store, opts ...Option) *Registry {
	// quartz scheduler with its own logger off
	quartzScheduler, _ := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))

	registry := &Registry{
		logger:          logger,
		store:           store,
		fetcher:         NewHTTPFetcher(logger),
		interval:        DefaultRefreshInterval,
		stopTimeout:     defaultStopTimeout,
		quartzScheduler: quartzScheduler,
		started:         atomic.NewBool(false),
		servers:         syncmap.New[string, string](),
		coverage:        make(map[string][]model.ChannelArchiverDataServerPVInfo),
	}

	for _, opt := range opts {
		opt(registry)
	}

	return registry
}

// Load seeds the server list from the store. It is called once during
// startup; coverage stays empty until the first refresh.
func (r *Registry) Load(ctx context.Context) error {
	serverURLs, err := r.store.ListBridgeServers(ctx)
	if err != nil {
		return err
	}

	r.servers.Reset()
	for _, serverURL := range serverURLs {
		archivesCSV, found, err := r.store.GetBridgeServer(ctx, serverURL)
		if err != nil {
			return err
		}
		if found {
			r.servers.Set(serverURL, archivesCSV)
		}
	}
	return nil
}

// Add registers an external data server and fetches its coverage.
//
// The entry is persisted before the fetch, so a server that is down at
// registration time stays registered and gets picked up by the next
// refresh; the fetch failure is still returned to the caller.
func (r *Registry) Add(ctx context.Context, serverURL string, archivesCSV string) error {
	if err := validation.New(validation.AllErrors()).
		AddAssertion(serverURL != "", "server URL is required").
		AddAssertion(len(splitArchives(archivesCSV)) > 0, "at least one archive index is required").
		Validate(); err != nil {
		return err
	}

	if err := r.store.PutBridgeServer(ctx, serverURL, archivesCSV); err != nil {
		return err
	}
	r.servers.Set(serverURL, archivesCSV)

	byPV, err := r.fetchServer(ctx, serverURL, archivesCSV)
	if err != nil {
		r.logger.Warnf("external data server %s registered, coverage fetch failed: %v", serverURL, err)
		return err
	}

	r.applyServerCoverage(serverURL, byPV)
	r.logger.Infof("registered external data server %s with archives [%s]", serverURL, archivesCSV)
	return nil
}

// Remove drops the server entry and every piece of coverage fetched from
// it. Removing a server that is not registered is a no-op.
func (r *Registry) Remove(ctx context.Context, serverURL string, archivesCSV string) error {
	if err := validation.New(validation.AllErrors()).
		AddAssertion(serverURL != "", "server URL is required").
		Validate(); err != nil {
		return err
	}

	if err := r.store.DeleteBridgeServer(ctx, serverURL); err != nil {
		return err
	}
	r.servers.Delete(serverURL)

	r.coverageMu.Lock()
	r.dropServerLocked(serverURL)
	r.coverageMu.Unlock()

	r.logger.Infof("removed external data server %s with archives [%s]", serverURL, archivesCSV)
	return nil
}

// Servers returns a snapshot of the registered servers as a map of server
// URL to archives CSV.
func (r *Registry) Servers() map[string]string {
	servers := make(map[string]string, r.servers.Len())
	r.servers.Range(func(serverURL string, archivesCSV string) {
		servers[serverURL] = archivesCSV
	})
	return servers
}

// PVInfos returns the coverage known for the PV, sorted by start second,
// or nil when no server covers it.
func (r *Registry) PVInfos(pvName string) []model.ChannelArchiverDataServerPVInfo {
	r.coverageMu.RLock()
	defer r.coverageMu.RUnlock()
	entries, ok := r.coverage[pvName]
	if !ok {
		return nil
	}
	return slices.Clone(entries)
}

// Refresh re-fetches coverage from every registered server.
//
// A server whose fetch fails is skipped with a warning and keeps the
// coverage it reported last time; one broken server never hides the
// others' data.
func (r *Registry) Refresh(ctx context.Context) {
	servers := r.Servers()
	if len(servers) == 0 {
		return
	}

	serverURLs := make([]string, 0, len(servers))
	for serverURL := range servers {
		serverURLs = append(serverURLs, serverURL)
	}
	sort.Strings(serverURLs)

	fresh := make(map[string][]model.ChannelArchiverDataServerPVInfo)
	skipped := make(map[string]bool)
	for _, serverURL := range serverURLs {
		byPV, err := r.fetchServer(ctx, serverURL, servers[serverURL])
		if err != nil {
			r.logger.Warnf("skipping external data server %s during refresh: %v", serverURL, err)
			skipped[serverURL] = true
			continue
		}
		for pvName, entries := range byPV {
			fresh[pvName] = append(fresh[pvName], entries...)
		}
	}

	r.coverageMu.Lock()
	for pvName, entries := range r.coverage {
		for _, entry := range entries {
			if skipped[entry.ServerURL] {
				fresh[pvName] = append(fresh[pvName], entry)
			}
		}
	}
	for pvName := range fresh {
		sortCoverage(fresh[pvName])
	}
	r.coverage = fresh
	r.coverageMu.Unlock()

	r.logger.Infof("refreshed PV coverage from %d external data server(s), skipped %d", len(serverURLs)-len(skipped), len(skipped))
}

// Start schedules the periodic coverage refresh. When no servers are
// registered the scheduler is left cold and Start is a no-op; a restart
// after adding the first server enables the refresh.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started.Load() {
		return nil
	}

	if r.servers.Len() == 0 {
		r.logger.Info("no external data servers registered, periodic coverage refresh is disabled")
		return nil
	}

	refreshJob := job.NewFunctionJob[bool](
		func(ctx context.Context) (bool, error) {
			r.Refresh(ctx)
			return true, nil
		},
	)

	detail := quartz.NewJobDetail(refreshJob, quartz.NewJobKey(uuid.NewString()))
	if err := r.quartzScheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(r.interval)); err != nil {
		return fmt.Errorf("failed to schedule coverage refresh: %w", err)
	}

	r.quartzScheduler.Start(ctx)
	r.started.Store(r.quartzScheduler.IsStarted())
	r.logger.Infof("periodic coverage refresh scheduled every %v", r.interval)
	return nil
}

// Stop cancels the periodic refresh and waits for an in-flight run to
// finish, up to the stop timeout.
func (r *Registry) Stop(ctx context.Context) {
	if !r.started.Load() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.quartzScheduler.Clear()
	r.quartzScheduler.Stop()
	r.started.Store(r.quartzScheduler.IsStarted())

	ctx, cancel := context.WithTimeout(ctx, r.stopTimeout)
	defer cancel()
	r.quartzScheduler.Wait(ctx)

	r.logger.Info("periodic coverage refresh stopped")
}

// fetchServer fetches every archive index of one server and groups the
// rows by PV. The first failing index fails the whole server.
func (r *Registry) fetchServer(ctx context.Context, serverURL string, archivesCSV string) (map[string][]model.ChannelArchiverDataServerPVInfo, error) {
	byPV := make(map[string][]model.ChannelArchiverDataServerPVInfo)
	for _, index := range splitArchives(archivesCSV) {
		rows, err := r.fetcher.Fetch(ctx, serverURL, index)
		if err != nil {
			return nil, fmt.Errorf("archive %q on %s: %w", index, serverURL, err)
		}
		for _, row := range rows {
			byPV[row.PV] = append(byPV[row.PV], model.ChannelArchiverDataServerPVInfo{
				ChannelArchiverDataServerInfo: model.ChannelArchiverDataServerInfo{
					ServerURL: serverURL,
					Index:     index,
				},
				StartSec: row.StartSec,
				EndSec:   row.EndSec,
			})
		}
	}
	return byPV, nil
}

// applyServerCoverage replaces one server's contribution to the coverage
// map with freshly fetched entries.
func (r *Registry) applyServerCoverage(serverURL string, byPV map[string][]model.ChannelArchiverDataServerPVInfo) {
	r.coverageMu.Lock()
	defer r.coverageMu.Unlock()

	r.dropServerLocked(serverURL)
	for pvName, entries := range byPV {
		merged := append(r.coverage[pvName], entries...)
		sortCoverage(merged)
		r.coverage[pvName] = merged
	}
}

// dropServerLocked removes the server's entries from every PV listing.
// Callers must hold coverageMu.
func (r *Registry) dropServerLocked(serverURL string) {
	for pvName, entries := range r.coverage {
		kept := make([]model.ChannelArchiverDataServerPVInfo, 0, len(entries))
		for _, entry := range entries {
			if entry.ServerURL != serverURL {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(r.coverage, pvName)
			continue
		}
		r.coverage[pvName] = kept
	}
}

func sortCoverage(entries []model.ChannelArchiverDataServerPVInfo) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartSec < entries[j].StartSec
	})
}

// splitArchives parses the archives CSV, trimming whitespace and dropping
// empty entries.
func splitArchives(archivesCSV string) []string {
	parts := strings.Split(archivesCSV, ",")
	indexes := make([]string, 0, len(parts))
	for _, part := range parts {
		if index := strings.TrimSpace(part); index != "" {
			indexes = append(indexes, index)
		}
	}
	return indexes
}
