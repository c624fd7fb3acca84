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

// Package model holds the entities exchanged between the configuration
// authority and its collaborators. All cluster-visible entities are keyed by
// stable string identifiers so that any node can compute the same key
// independently.
package model

// Component identifies which of the four appliance roles a process is
// running as. Every appliance runs all four roles under one identity.
type Component string

const (
	// ComponentMgmt is the management role that drives the archive-request
	// workflow and owns cluster administration.
	ComponentMgmt Component = "MGMT"
	// ComponentEngine is the ingestion role that samples PVs.
	ComponentEngine Component = "ENGINE"
	// ComponentETL is the tiered-storage mover role.
	ComponentETL Component = "ETL"
	// ComponentRetrieval is the data retrieval role.
	ComponentRetrieval Component = "RETRIEVAL"
)

// ApplianceInfo describes one node in the cluster: its identity, the
// inter-appliance address and the endpoint URLs of its four roles.
//
// The same list of appliances must be read identically by all members;
// divergence is the split-brain hazard. Instances are immutable once loaded
// from the shared descriptor and are never mutated at runtime.
type ApplianceInfo struct {
	// Identity is the unique name of the appliance within the cluster.
	Identity string `json:"identity" yaml:"identity"`
	// ClusterInetPort is the host:port used for inter-appliance traffic.
	ClusterInetPort string `json:"cluster_inetport" yaml:"cluster_inetport"`
	// MgmtURL is the business-logic endpoint of the mgmt role.
	MgmtURL string `json:"mgmt_url" yaml:"mgmt_url"`
	// EngineURL is the business-logic endpoint of the engine role.
	EngineURL string `json:"engine_url" yaml:"engine_url"`
	// ETLURL is the business-logic endpoint of the etl role.
	ETLURL string `json:"etl_url" yaml:"etl_url"`
	// RetrievalURL is the business-logic endpoint of the retrieval role.
	RetrievalURL string `json:"retrieval_url" yaml:"retrieval_url"`
	// DataRetrievalURL is the retrieval role's data endpoint, distinct from
	// its business-logic endpoint.
	DataRetrievalURL string `json:"data_retrieval_url" yaml:"data_retrieval_url"`
}

// Equals reports whether both appliance infos designate the same appliance.
// Appliances are compared by identity only.
func (a *ApplianceInfo) Equals(other *ApplianceInfo) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Identity == other.Identity
}

// Clone returns a copy of the appliance info.
func (a *ApplianceInfo) Clone() *ApplianceInfo {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// ApplianceAggregateInfo carries per-appliance totals aggregated over the
// type infos of the PVs the appliance owns. It backs capacity-planning and
// reporting decisions.
type ApplianceAggregateInfo struct {
	// PVCount is the number of PVs assigned to the appliance.
	PVCount int `json:"pv_count"`
	// PausedPVCount is the number of those PVs whose archiving is paused.
	PausedPVCount int `json:"paused_pv_count"`
	// TotalEventRate is the sum of the computed event rates in events/sec.
	TotalEventRate float64 `json:"total_event_rate"`
	// TotalStorageRate is the sum of the computed storage rates in bytes/sec.
	TotalStorageRate float64 `json:"total_storage_rate"`
}
