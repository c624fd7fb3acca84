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

// Package appliance assembles the configuration authority every other
// subsystem of the archiver talks to.
//
// The ConfigService facade wires the persistence store, the membership and
// ownership resolver, the metadata cache, the policy engine, the
// archive-request workflow tracker, the external data server bridge and the
// local event stream into one surface, and owns the process startup and
// shutdown sequences.
package appliance

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/pvarchive/pvarchive/bridge"
	"github.com/pvarchive/pvarchive/cache"
	"github.com/pvarchive/pvarchive/cluster"
	"github.com/pvarchive/pvarchive/eventstream"
	"github.com/pvarchive/pvarchive/internal/keylock"
	"github.com/pvarchive/pvarchive/internal/validation"
	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
	"github.com/pvarchive/pvarchive/persistence"
	"github.com/pvarchive/pvarchive/policy"
	"github.com/pvarchive/pvarchive/workflow"
)

const (
	// DefaultInitialDelaySingle is the delay before the archive-request
	// workflow starts processing on a single-appliance installation.
	DefaultInitialDelaySingle = 10 * time.Second
	// DefaultInitialDelayClustered is the delay on a clustered
	// installation, long enough for every member to come up so capacity
	// planning sees the whole cluster.
	DefaultInitialDelayClustered = 5 * time.Minute

	// startupPingAttempts is how often Start retries the store ping before
	// giving up; persistence being down at startup is fatal.
	startupPingAttempts = 5
)

// defaultPolicies is the built-in rule set used when the installation does
// not supply one: monitor everything at 1Hz through the standard three
// store tiers.
const defaultPolicies = `
default: Default
policies:
  - name: Default
    description: Monitor at 1Hz into the short, medium and long term stores
    sampling_method: MONITOR
    sampling_period: 1.0
    data_stores:
      - STS
      - MTS
      - LTS
`

// ConfigService is the cluster-wide configuration and ownership authority.
//
// Every node runs one instance per process. All mutating per-PV operations
// are linearized per PV name; operations on different PVs proceed
// independently. Reads are served from in-memory state seeded from the
// persistence store during Start.
type ConfigService interface {
	// AppliancesInCluster returns the cluster members in definition order.
	// The order is stable across calls and across nodes.
	AppliancesInCluster() []*model.ApplianceInfo
	// MyApplianceInfo returns the local member.
	MyApplianceInfo() *model.ApplianceInfo
	// Appliance returns the member with the given identity.
	Appliance(identity string) (*model.ApplianceInfo, bool)
	// AllPVs returns the names of all PVs owned anywhere in the cluster,
	// sorted.
	AllPVs() []string
	// ApplianceForPV returns the appliance owning the PV. An unassigned PV
	// is a valid, expected state reported through the boolean.
	ApplianceForPV(pvName string) (*model.ApplianceInfo, bool)
	// PVsForAppliance returns the names of the PVs owned by the identified
	// appliance, sorted.
	PVsForAppliance(identity string) []string
	// PVsForThisAppliance returns the names of the PVs owned locally,
	// sorted.
	PVsForThisAppliance() []string
	// RegisterPVToAppliance records the appliance as the PV's owner and,
	// when the PV has an in-flight archive request, advances it to
	// OWNER_ASSIGNED. Registering an already-owned PV fails with
	// cluster.ErrAlreadyRegistered.
	RegisterPVToAppliance(ctx context.Context, pvName string, identity string) error
	// AggregatedApplianceInfo totals PV count, paused count and the
	// computed event and storage rates over the appliance's PVs.
	AggregatedApplianceInfo(ctx context.Context, identity string) (*model.ApplianceAggregateInfo, error)
	// PausedPVsInThisAppliance returns the locally owned PVs whose
	// archiving is paused, sorted.
	PausedPVsInThisAppliance(ctx context.Context) ([]string, error)

	// TypeInfoForPV returns the PV's type info.
	TypeInfoForPV(ctx context.Context, pvName string) (*model.PVTypeInfo, bool, error)
	// UpdateTypeInfoForPV stores the PV's type info write-through and
	// returns the record as stored, with its modification time stamped.
	UpdateTypeInfoForPV(ctx context.Context, pvName string, info *model.PVTypeInfo) (*model.PVTypeInfo, error)
	// RemovePVFromCluster removes the PV's ownership, type info and any
	// pending archive request in one transaction. Aliases are kept.
	RemovePVFromCluster(ctx context.Context, pvName string) error

	// AddToArchiveRequests queues an archive request for the PV. Adding an
	// already-pending PV is a no-op.
	AddToArchiveRequests(ctx context.Context, pvName string, params *model.UserSpecifiedSamplingParams) error
	// UpdateArchiveRequest replaces the user params of an in-flight
	// request; it never creates one.
	UpdateArchiveRequest(ctx context.Context, pvName string, params *model.UserSpecifiedSamplingParams) error
	// ArchiveRequestsCurrentlyInWorkflow returns the PVs with in-flight
	// requests, sorted.
	ArchiveRequestsCurrentlyInWorkflow() []string
	// PVHasArchiveRequestInWorkflow reports whether the PV has an
	// in-flight request.
	PVHasArchiveRequestInWorkflow(pvName string) bool
	// UserSpecifiedSamplingParams returns the user params supplied with
	// the PV's in-flight request.
	UserSpecifiedSamplingParams(pvName string) (*model.UserSpecifiedSamplingParams, bool)
	// ArchiveRequestWorkflowCompleted removes the PV's request from the
	// workflow once the first sample was captured.
	ArchiveRequestWorkflowCompleted(ctx context.Context, pvName string) error
	// AbortArchiveRequest cancels an in-flight request at any stage,
	// releasing partial ownership and metadata already created.
	AbortArchiveRequest(ctx context.Context, pvName string) error
	// MarkArchiveRequestPolicyComputed advances the PV's request from
	// REQUESTED to POLICY_COMPUTED.
	MarkArchiveRequestPolicyComputed(ctx context.Context, pvName string) error
	// InitialDelayBeforeStartingArchiveRequestWorkflow is how long the
	// workflow driver waits after startup before processing requests.
	InitialDelayBeforeStartingArchiveRequestWorkflow() time.Duration

	// AddAlias registers an alias for an archived PV.
	AddAlias(ctx context.Context, alias string, realName string) error
	// RemoveAlias removes an alias; the real name must match.
	RemoveAlias(ctx context.Context, alias string, realName string) error
	// AllAliases returns all alias names, sorted.
	AllAliases() []string
	// RealNameForAlias resolves an alias to the name the PV is archived
	// under.
	RealNameForAlias(alias string) (string, bool)

	// ComputePolicyForPV selects the archiving policy for the PV and
	// applies the user's overrides. Deterministic for identical inputs.
	ComputePolicyForPV(pvName string, meta *model.MetaInfo, params *model.UserSpecifiedSamplingParams) (*model.PolicyConfig, error)
	// PoliciesInInstallation maps policy names to their descriptions.
	PoliciesInInstallation() map[string]string
	// PolicyText returns the installation's policy rules verbatim.
	PolicyText() string
	// ExtraFields lists the fields fetched at onboarding time for policy
	// decisions.
	ExtraFields() []string
	// RuntimeFields lists the fields the engine keeps the latest value of.
	RuntimeFields() []string
	// FieldsArchivedAsPartOfStream lists the fields embedded into every
	// PV's sample stream.
	FieldsArchivedAsPartOfStream() []string

	// ChannelArchiverDataServers returns the registered external data
	// servers as a map of server URL to archives CSV.
	ChannelArchiverDataServers() map[string]string
	// AddChannelArchiverDataServer registers an external data server and
	// fetches its coverage.
	AddChannelArchiverDataServer(ctx context.Context, serverURL string, archivesCSV string) error
	// RemoveChannelArchiverDataServer drops an external data server and
	// its coverage.
	RemoveChannelArchiverDataServer(ctx context.Context, serverURL string, archivesCSV string) error
	// ChannelArchiverDataServersForPV returns the external coverage for
	// the PV, sorted by start second.
	ChannelArchiverDataServersForPV(pvName string) []model.ChannelArchiverDataServerPVInfo
	// RefreshPVDataFromChannelArchiverDataServers re-fetches coverage from
	// every external data server.
	RefreshPVDataFromChannelArchiverDataServers(ctx context.Context)

	// Component reports which appliance role this process runs as.
	Component() model.Component
	// InstallationProperties returns a copy of the installation
	// properties.
	InstallationProperties() map[string]string
	// PVNameToKeyConverter returns the converter from PV names to chunk
	// key prefixes.
	PVNameToKeyConverter() *PVNameToKeyConverter
	// EventStream exposes the local event stream for in-process
	// subscribers.
	EventStream() eventstream.Stream

	// Start brings the service to READY_TO_JOIN_APPLIANCE: it pings the
	// store, seeds the appliances collection and loads ownership, metadata,
	// workflow and bridge state. A persistence failure here is fatal.
	Start(ctx context.Context) error
	// StartupState returns the stage the local startup sequence reached.
	StartupState() StartupState
	// IsStartupComplete reports whether the local startup sequence
	// finished.
	IsStartupComplete() bool
	// PostStartup finishes the startup sequence and starts the background
	// coverage refresh. It is monotonic; calling it again is a no-op.
	PostStartup(ctx context.Context) error
	// AddShutdownHook appends a named cleanup callback run by ShutdownNow
	// in registration order.
	AddShutdownHook(name string, hook func(ctx context.Context) error)
	// ShutdownNow runs the shutdown hooks, then stops the background
	// refresh and closes the event stream and the store. Hook failures are
	// logged and do not stop later hooks.
	ShutdownNow(ctx context.Context) error
	// IsShuttingDown reports whether ShutdownNow has been invoked.
	IsShuttingDown() bool
}

// configService is the ConfigService implementation.
type configService struct {
	identity   string
	component  model.Component
	logger     log.Logger
	store      persistence.Store
	properties map[string]string

	// construction inputs resolved by the options
	appliancesFile string
	members        []*model.ApplianceInfo
	policiesFile   string
	policiesData   []byte
	bridgeFetcher  bridge.Fetcher
	bridgeInterval time.Duration
	initialDelay   time.Duration

	locks          *keylock.KeyLock
	resolver       *cluster.Resolver
	metadata       *cache.Metadata
	tracker        *workflow.Tracker
	engine         *policy.Engine
	bridgeRegistry *bridge.Registry
	events         eventstream.Stream

	// mu serializes the lifecycle transitions
	mu           sync.Mutex
	state        *atomic.Int32
	shuttingDown *atomic.Bool

	hooksMu sync.Mutex
	hooks   []shutdownHook

	extraFields   []string
	runtimeFields []string
	streamFields  []string
	keyConverter  *PVNameToKeyConverter
}

// shutdownHook is one named cleanup callback.
type shutdownHook struct {
	name string
	run  func(ctx context.Context) error
}

// enforce compilation error
var _ ConfigService = (*configService)(nil)

// NewConfigService creates the configuration authority for the appliance
// with the given identity. The service is inert until Start is called.
func NewConfigService(identity string, opts ...Option) (ConfigService, error) {
	svc := &configService{
		identity:     identity,
		component:    model.ComponentMgmt,
		logger:       log.DefaultLogger,
		properties:   make(map[string]string),
		locks:        keylock.New(0),
		events:       eventstream.New(),
		state:        atomic.NewInt32(int32(ZerothState)),
		shuttingDown: atomic.NewBool(false),
	}

	// apply the various options
	for _, opt := range opts {
		opt.Apply(svc)
	}

	err := validation.New(validation.AllErrors()).
		AddAssertion(identity != "", "appliance identity is required").
		AddAssertion(svc.store != nil, "a persistence store is required").
		AddAssertion(svc.appliancesFile != "" || len(svc.members) > 0, "cluster members are required").
		Validate()
	if err != nil {
		return nil, err
	}

	if len(svc.members) == 0 {
		members, err := cluster.LoadAppliances(svc.appliancesFile)
		if err != nil {
			return nil, err
		}
		svc.members = members
	}

	switch {
	case svc.policiesFile != "":
		svc.engine, err = policy.Load(svc.logger, svc.policiesFile)
	case len(svc.policiesData) > 0:
		svc.engine, err = policy.Parse(svc.logger, svc.policiesData)
	default:
		svc.engine, err = policy.Parse(svc.logger, []byte(defaultPolicies))
	}
	if err != nil {
		return nil, err
	}

	svc.resolver, err = cluster.NewResolver(svc.logger, svc.store, svc.locks, svc.members, identity)
	if err != nil {
		return nil, err
	}
	svc.metadata = cache.NewMetadata(svc.logger, svc.store)
	svc.tracker = workflow.NewTracker(svc.logger, svc.store, svc.locks, svc.resolver.Unregister)

	bridgeOpts := make([]bridge.Option, 0, 2)
	if svc.bridgeFetcher != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithFetcher(svc.bridgeFetcher))
	}
	if svc.bridgeInterval > 0 {
		bridgeOpts = append(bridgeOpts, bridge.WithRefreshInterval(svc.bridgeInterval))
	}
	svc.bridgeRegistry = bridge.NewRegistry(svc.logger, svc.store, bridgeOpts...)

	// an unregistered PV vanishes from the cache and the workflow as part
	// of the same per-PV critical section, and subscribers hear about both
	// registrations and removals in per-PV order
	svc.resolver.OnForget(svc.metadata.Remove)
	svc.resolver.OnForget(svc.tracker.Forget)
	svc.resolver.OnForget(func(pvName string) {
		svc.events.Publish(TopicPVRemoved, &PVRemoved{PV: pvName})
	})
	svc.resolver.OnRegister(func(pvName string, info *model.ApplianceInfo) {
		svc.events.Publish(TopicPVRegistered, &PVRegistered{PV: pvName, Appliance: info.Identity})
	})

	svc.extraFields = fieldsProperty(svc.properties, PropExtraFields, defaultExtraFields)
	svc.runtimeFields = fieldsProperty(svc.properties, PropRuntimeFields, defaultRuntimeFields)
	svc.streamFields = fieldsProperty(svc.properties, PropStreamFields, defaultStreamFields)
	svc.keyConverter = NewPVNameToKeyConverter(svc.properties[PropKeySeparators], svc.properties[PropKeyTerminator])

	return svc, nil
}

// Start brings the service from ZEROTH_STATE to READY_TO_JOIN_APPLIANCE.
// Calling Start again after it succeeded is a no-op.
func (s *configService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StartupState() != ZerothState {
		return nil
	}

	s.logger.Infof("starting config service identity=(%s) component=(%s)...", s.identity, s.component)

	retrier := retry.NewRetrier(startupPingAttempts, 100*time.Millisecond, 2*time.Second)
	if err := retrier.RunContext(ctx, func(ctx context.Context) error {
		return s.store.Ping(ctx)
	}); err != nil {
		return fmt.Errorf("persistence store unreachable: %w", err)
	}

	// the appliances collection mirrors the descriptor so reporting tools
	// can read membership from the store alone
	for _, member := range s.members {
		if err := s.store.PutAppliance(ctx, member); err != nil {
			return fmt.Errorf("seeding appliance %s: %w", member.Identity, err)
		}
	}

	if err := s.resolver.Load(ctx); err != nil {
		return fmt.Errorf("loading PV ownership: %w", err)
	}
	if err := s.metadata.Warm(ctx); err != nil {
		return fmt.Errorf("warming metadata cache: %w", err)
	}
	if err := s.tracker.Load(ctx); err != nil {
		return fmt.Errorf("loading archive requests: %w", err)
	}
	if err := s.bridgeRegistry.Load(ctx); err != nil {
		return fmt.Errorf("loading external data servers: %w", err)
	}

	s.setState(ReadyToJoinAppliance)
	s.logger.Infof("config service identity=(%s) is ready to join the appliance", s.identity)
	return nil
}

// PostStartup finishes the startup sequence. It fails with ErrNotReady when
// Start has not completed; once STARTUP_COMPLETE is reached further calls
// return nil.
func (s *configService) PostStartup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.StartupState() {
	case StartupComplete:
		return nil
	case ReadyToJoinAppliance:
	default:
		return fmt.Errorf("%w: post startup requires %s, currently %s", ErrNotReady, ReadyToJoinAppliance, s.StartupState())
	}

	s.setState(PostStartupRunning)
	if err := s.bridgeRegistry.Start(ctx); err != nil {
		// the service is usable without the background refresh; coverage
		// can still be refreshed on demand
		s.logger.Errorf("periodic coverage refresh not started: %v", err)
	}
	s.setState(StartupComplete)

	s.logger.Infof("config service identity=(%s) startup complete", s.identity)
	return nil
}

// StartupState returns the stage the local startup sequence reached.
func (s *configService) StartupState() StartupState {
	return StartupState(s.state.Load())
}

// IsStartupComplete reports whether the local startup sequence finished.
func (s *configService) IsStartupComplete() bool {
	return s.StartupState() == StartupComplete
}

func (s *configService) setState(state StartupState) {
	s.state.Store(int32(state))
	s.logger.Debugf("startup sequence moved to %s", state)
}

// AddShutdownHook appends a named cleanup callback. Hooks run in
// registration order during ShutdownNow.
func (s *configService) AddShutdownHook(name string, hook func(ctx context.Context) error) {
	if hook == nil {
		return
	}
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, shutdownHook{name: name, run: hook})
	s.hooksMu.Unlock()
}

// ShutdownNow tears the service down: hooks first in registration order,
// best effort, then the background refresh, the event stream and the store.
// Calling it again is a no-op.
func (s *configService) ShutdownNow(ctx context.Context) error {
	if s.shuttingDown.Swap(true) {
		return nil
	}

	s.logger.Infof("config service identity=(%s) shutting down...", s.identity)

	s.hooksMu.Lock()
	hooks := slices.Clone(s.hooks)
	s.hooksMu.Unlock()

	var errs error
	for _, hook := range hooks {
		if err := hook.run(ctx); err != nil {
			s.logger.Errorf("shutdown hook (%s) failed: %v", hook.name, err)
			errs = multierr.Append(errs, fmt.Errorf("shutdown hook %s: %w", hook.name, err))
		}
	}

	s.bridgeRegistry.Stop(ctx)
	s.events.Close()
	if err := s.store.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}

	s.logger.Infof("config service identity=(%s) shut down", s.identity)
	return errs
}

// IsShuttingDown reports whether ShutdownNow has been invoked.
func (s *configService) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

func (s *configService) AppliancesInCluster() []*model.ApplianceInfo {
	return s.resolver.Appliances()
}

func (s *configService) MyApplianceInfo() *model.ApplianceInfo {
	return s.resolver.MyAppliance()
}

func (s *configService) Appliance(identity string) (*model.ApplianceInfo, bool) {
	return s.resolver.Appliance(identity)
}

func (s *configService) AllPVs() []string {
	return s.resolver.AllPVs()
}

func (s *configService) ApplianceForPV(pvName string) (*model.ApplianceInfo, bool) {
	return s.resolver.OwnerOf(pvName)
}

func (s *configService) PVsForAppliance(identity string) []string {
	info, ok := s.resolver.Appliance(identity)
	if !ok {
		return nil
	}
	return s.resolver.PVsOwnedBy(info)
}

func (s *configService) PVsForThisAppliance() []string {
	return s.resolver.PVsOwnedBy(s.resolver.MyAppliance())
}

func (s *configService) RegisterPVToAppliance(ctx context.Context, pvName string, identity string) error {
	info, ok := s.resolver.Appliance(identity)
	if !ok {
		return fmt.Errorf("%w: identity=%s", cluster.ErrUnknownAppliance, identity)
	}
	if err := s.resolver.Register(ctx, pvName, info); err != nil {
		return err
	}
	// ownership registration advances an in-flight archive request
	if s.tracker.IsPending(pvName) {
		if err := s.tracker.MarkOwnerAssigned(ctx, pvName); err != nil {
			s.logger.Warnf("PV=(%s) registered to appliance=(%s) but its archive request did not advance: %v", pvName, identity, err)
			return err
		}
	}
	return nil
}

func (s *configService) AggregatedApplianceInfo(ctx context.Context, identity string) (*model.ApplianceAggregateInfo, error) {
	info, ok := s.resolver.Appliance(identity)
	if !ok {
		return nil, fmt.Errorf("%w: identity=%s", cluster.ErrUnknownAppliance, identity)
	}

	aggregate := new(model.ApplianceAggregateInfo)
	for _, pvName := range s.resolver.PVsOwnedBy(info) {
		typeInfo, found, err := s.metadata.TypeInfo(ctx, pvName)
		if err != nil {
			return nil, err
		}
		aggregate.PVCount++
		if !found {
			continue
		}
		if typeInfo.Paused {
			aggregate.PausedPVCount++
		}
		aggregate.TotalEventRate += typeInfo.ComputedEventRate
		aggregate.TotalStorageRate += typeInfo.ComputedStorageRate
	}
	return aggregate, nil
}

func (s *configService) PausedPVsInThisAppliance(ctx context.Context) ([]string, error) {
	paused := make([]string, 0)
	for _, pvName := range s.PVsForThisAppliance() {
		typeInfo, found, err := s.metadata.TypeInfo(ctx, pvName)
		if err != nil {
			return nil, err
		}
		if found && typeInfo.Paused {
			paused = append(paused, pvName)
		}
	}
	return paused, nil
}

func (s *configService) TypeInfoForPV(ctx context.Context, pvName string) (*model.PVTypeInfo, bool, error) {
	return s.metadata.TypeInfo(ctx, pvName)
}

func (s *configService) UpdateTypeInfoForPV(ctx context.Context, pvName string, info *model.PVTypeInfo) (*model.PVTypeInfo, error) {
	s.locks.Lock(pvName)
	defer s.locks.Unlock(pvName)

	stored, err := s.metadata.PutTypeInfo(ctx, pvName, info)
	if err != nil {
		return nil, err
	}
	s.events.Publish(TopicTypeInfoUpdated, &TypeInfoUpdated{PV: pvName, TypeInfo: stored})
	return stored, nil
}

func (s *configService) RemovePVFromCluster(ctx context.Context, pvName string) error {
	return s.resolver.Unregister(ctx, pvName)
}

func (s *configService) AddToArchiveRequests(ctx context.Context, pvName string, params *model.UserSpecifiedSamplingParams) error {
	return s.tracker.Add(ctx, pvName, params)
}

func (s *configService) UpdateArchiveRequest(ctx context.Context, pvName string, params *model.UserSpecifiedSamplingParams) error {
	return s.tracker.Update(ctx, pvName, params)
}

func (s *configService) ArchiveRequestsCurrentlyInWorkflow() []string {
	return s.tracker.Pending()
}

func (s *configService) PVHasArchiveRequestInWorkflow(pvName string) bool {
	return s.tracker.IsPending(pvName)
}

func (s *configService) UserSpecifiedSamplingParams(pvName string) (*model.UserSpecifiedSamplingParams, bool) {
	return s.tracker.Params(pvName)
}

func (s *configService) ArchiveRequestWorkflowCompleted(ctx context.Context, pvName string) error {
	return s.tracker.Completed(ctx, pvName)
}

func (s *configService) AbortArchiveRequest(ctx context.Context, pvName string) error {
	return s.tracker.Abort(ctx, pvName)
}

func (s *configService) MarkArchiveRequestPolicyComputed(ctx context.Context, pvName string) error {
	return s.tracker.MarkPolicyComputed(ctx, pvName)
}

func (s *configService) InitialDelayBeforeStartingArchiveRequestWorkflow() time.Duration {
	if s.initialDelay > 0 {
		return s.initialDelay
	}
	if len(s.members) > 1 {
		return DefaultInitialDelayClustered
	}
	return DefaultInitialDelaySingle
}

func (s *configService) AddAlias(ctx context.Context, alias string, realName string) error {
	return s.metadata.AddAlias(ctx, alias, realName)
}

func (s *configService) RemoveAlias(ctx context.Context, alias string, realName string) error {
	return s.metadata.RemoveAlias(ctx, alias, realName)
}

func (s *configService) AllAliases() []string {
	return s.metadata.AllAliases()
}

func (s *configService) RealNameForAlias(alias string) (string, bool) {
	return s.metadata.RealNameForAlias(alias)
}

func (s *configService) ComputePolicyForPV(pvName string, meta *model.MetaInfo, params *model.UserSpecifiedSamplingParams) (*model.PolicyConfig, error) {
	return s.engine.Compute(pvName, meta, params)
}

func (s *configService) PoliciesInInstallation() map[string]string {
	return s.engine.Catalog()
}

func (s *configService) PolicyText() string {
	return s.engine.Text()
}

func (s *configService) ExtraFields() []string {
	return slices.Clone(s.extraFields)
}

func (s *configService) RuntimeFields() []string {
	return slices.Clone(s.runtimeFields)
}

func (s *configService) FieldsArchivedAsPartOfStream() []string {
	return slices.Clone(s.streamFields)
}

func (s *configService) ChannelArchiverDataServers() map[string]string {
	return s.bridgeRegistry.Servers()
}

func (s *configService) AddChannelArchiverDataServer(ctx context.Context, serverURL string, archivesCSV string) error {
	return s.bridgeRegistry.Add(ctx, serverURL, archivesCSV)
}

func (s *configService) RemoveChannelArchiverDataServer(ctx context.Context, serverURL string, archivesCSV string) error {
	return s.bridgeRegistry.Remove(ctx, serverURL, archivesCSV)
}

func (s *configService) ChannelArchiverDataServersForPV(pvName string) []model.ChannelArchiverDataServerPVInfo {
	return s.bridgeRegistry.PVInfos(pvName)
}

func (s *configService) RefreshPVDataFromChannelArchiverDataServers(ctx context.Context) {
	s.bridgeRegistry.Refresh(ctx)
}

func (s *configService) Component() model.Component {
	return s.component
}

func (s *configService) InstallationProperties() map[string]string {
	return maps.Clone(s.properties)
}

func (s *configService) PVNameToKeyConverter() *PVNameToKeyConverter {
	return s.keyConverter
}

func (s *configService) EventStream() eventstream.Stream {
	return s.events
}
