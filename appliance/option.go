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

package appliance

import (
	"time"

	"github.com/pvarchive/pvarchive/bridge"
	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
	"github.com/pvarchive/pvarchive/persistence"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(svc *configService)
}

// enforce compilation error
var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(svc *configService)

func (f OptionFunc) Apply(svc *configService) {
	f(svc)
}

// WithStore sets the persistence backend. A store is required.
func WithStore(store persistence.Store) Option {
	return OptionFunc(func(svc *configService) {
		svc.store = store
	})
}

// WithAppliances sets the cluster member list directly, in definition order.
func WithAppliances(members []*model.ApplianceInfo) Option {
	return OptionFunc(func(svc *configService) {
		svc.members = members
	})
}

// WithAppliancesFile sets the path of the shared appliances descriptor. The
// file is read once during construction.
func WithAppliancesFile(path string) Option {
	return OptionFunc(func(svc *configService) {
		svc.appliancesFile = path
	})
}

// WithComponent sets which appliance role this process runs as.
func WithComponent(component model.Component) Option {
	return OptionFunc(func(svc *configService) {
		svc.component = component
	})
}

// WithPolicies sets the archiving policy rules as a YAML document.
func WithPolicies(rules []byte) Option {
	return OptionFunc(func(svc *configService) {
		svc.policiesData = rules
	})
}

// WithPoliciesFile sets the path of the archiving policy rule file.
func WithPoliciesFile(path string) Option {
	return OptionFunc(func(svc *configService) {
		svc.policiesFile = path
	})
}

// WithLogger sets a custom logger.
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(svc *configService) {
		svc.logger = logger
	})
}

// WithProperties sets the installation properties.
func WithProperties(properties map[string]string) Option {
	return OptionFunc(func(svc *configService) {
		svc.properties = properties
	})
}

// WithBridgeFetcher replaces the HTTP fetcher used to read coverage from
// external Channel Archiver data servers.
func WithBridgeFetcher(fetcher bridge.Fetcher) Option {
	return OptionFunc(func(svc *configService) {
		svc.bridgeFetcher = fetcher
	})
}

// WithBridgeRefreshInterval sets the period of the background coverage
// refresh against external Channel Archiver data servers.
func WithBridgeRefreshInterval(interval time.Duration) Option {
	return OptionFunc(func(svc *configService) {
		svc.bridgeInterval = interval
	})
}

// WithInitialDelay overrides the computed delay before the archive-request
// workflow starts processing after startup.
func WithInitialDelay(delay time.Duration) Option {
	return OptionFunc(func(svc *configService) {
		svc.initialDelay = delay
	})
}
