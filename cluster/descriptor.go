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

package cluster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pvarchive/pvarchive/internal/validation"
	"github.com/pvarchive/pvarchive/model"
)

// identityPattern constrains appliance identities to characters that are safe
// in persistence keys, URLs and log fields.
const identityPattern = `^[a-zA-Z0-9_.-]+$`

// LoadAppliances reads the cluster membership descriptor from a YAML file.
//
// Every member of the cluster must point at the same descriptor; diverging
// copies are the split-brain hazard this system cannot detect. The returned
// slice keeps the file's definition order.
func LoadAppliances(path string) ([]*model.ApplianceInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cluster: reading appliances descriptor: %w", err)
	}
	members, err := ParseAppliances(data)
	if err != nil {
		return nil, fmt.Errorf("cluster: descriptor %s: %w", path, err)
	}
	return members, nil
}

// ParseAppliances parses and validates a YAML membership descriptor.
func ParseAppliances(data []byte) ([]*model.ApplianceInfo, error) {
	var members []*model.ApplianceInfo
	if err := yaml.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("parsing appliances descriptor: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	chain := validation.New(validation.AllErrors())
	seenIdentities := make(map[string]bool, len(members))
	seenAddresses := make(map[string]bool, len(members))
	for i, member := range members {
		at := fmt.Sprintf("appliance[%d]", i)
		if member.Identity != "" {
			at = fmt.Sprintf("appliance %q", member.Identity)
		}
		chain.
			AddAssertion(member.Identity != "", fmt.Sprintf("%s: identity is required", at)).
			AddAssertion(member.ClusterInetPort != "", fmt.Sprintf("%s: cluster_inetport is required", at)).
			AddAssertion(member.MgmtURL != "", fmt.Sprintf("%s: mgmt_url is required", at)).
			AddAssertion(member.EngineURL != "", fmt.Sprintf("%s: engine_url is required", at)).
			AddAssertion(member.ETLURL != "", fmt.Sprintf("%s: etl_url is required", at)).
			AddAssertion(member.RetrievalURL != "", fmt.Sprintf("%s: retrieval_url is required", at)).
			AddAssertion(member.DataRetrievalURL != "", fmt.Sprintf("%s: data_retrieval_url is required", at))

		if member.Identity != "" {
			chain.AddValidator(validation.NewPatternValidator(identityPattern, member.Identity,
				fmt.Errorf("%s: identity must match %s", at, identityPattern)))
			chain.AddAssertion(!seenIdentities[member.Identity], fmt.Sprintf("%s: duplicate identity", at))
			seenIdentities[member.Identity] = true
		}
		if member.ClusterInetPort != "" {
			chain.AddAssertion(!seenAddresses[member.ClusterInetPort], fmt.Sprintf("%s: duplicate cluster_inetport %q", at, member.ClusterInetPort))
			seenAddresses[member.ClusterInetPort] = true
		}
	}

	if err := chain.Validate(); err != nil {
		return nil, err
	}
	return members, nil
}
