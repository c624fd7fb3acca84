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

// Package policy computes archiving parameters for newly requested PVs from
// a site-specific rule file.
//
// The rule set is loaded once at startup and is immutable for the life of
// the process; changing the rules requires a restart. Computation is
// deterministic and does no I/O, so independent nodes evaluating the same
// inputs reach the same decision.
package policy

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/pvarchive/pvarchive/internal/validation"
	"github.com/pvarchive/pvarchive/log"
	"github.com/pvarchive/pvarchive/model"
)

// ruleDoc is the YAML shape of the rule file.
type ruleDoc struct {
	Default  string     `yaml:"default"`
	Policies []ruleSpec `yaml:"policies"`
}

type ruleSpec struct {
	Name           string               `yaml:"name"`
	Description    string               `yaml:"description"`
	SamplingMethod model.SamplingMethod `yaml:"sampling_method"`
	SamplingPeriod float64              `yaml:"sampling_period"`
	DataStores     []string             `yaml:"data_stores"`
	ArchiveFields  []string             `yaml:"archive_fields"`
	ControlPV      string               `yaml:"control_pv"`
	Appliance      string               `yaml:"appliance"`
	Match          matchSpec            `yaml:"match"`
}

type matchSpec struct {
	PVPatterns   []string `yaml:"pv_patterns"`
	SampleTypes  []string `yaml:"sample_types"`
	MinEventRate *float64 `yaml:"min_event_rate"`
	MaxEventRate *float64 `yaml:"max_event_rate"`
}

// rule is one compiled policy.
type rule struct {
	config      model.PolicyConfig
	description string

	patterns     []*regexp.Regexp
	sampleTypes  map[model.SampleType]bool
	minEventRate *float64
	maxEventRate *float64
}

// matches reports whether the rule's match block accepts the PV. Every
// specified condition must hold; an empty match block accepts everything.
func (r *rule) matches(pvName string, meta *model.MetaInfo) bool {
	if len(r.patterns) > 0 {
		matched := false
		for _, pattern := range r.patterns {
			if pattern.MatchString(pvName) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(r.sampleTypes) > 0 {
		if meta == nil || !r.sampleTypes[meta.SampleType] {
			return false
		}
	}
	if r.minEventRate != nil {
		if meta == nil || meta.EventRate < *r.minEventRate {
			return false
		}
	}
	if r.maxEventRate != nil {
		if meta == nil || meta.EventRate > *r.maxEventRate {
			return false
		}
	}
	return true
}

// Engine evaluates the installation's policy rules. Immutable after load.
type Engine struct {
	logger log.Logger

	text        string
	defaultName string
	rules       []*rule
	byName      map[string]*rule
}

// Load reads and compiles the rule file.
func Load(logger log.Logger, path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: reading rule file: %w", err)
	}
	engine, err := Parse(logger, data)
	if err != nil {
		return nil, fmt.Errorf("policy: rule file %s: %w", path, err)
	}
	logger.Infof("loaded %d archiving policies from %s", len(engine.rules), path)
	return engine, nil
}

// Parse compiles a YAML rule document.
func Parse(logger log.Logger, data []byte) (*Engine, error) {
	var doc ruleDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	chain := validation.New(validation.FailFast()).
		AddAssertion(len(doc.Policies) > 0, "at least one policy is required")
	if err := chain.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		logger:      logger,
		text:        string(data),
		defaultName: doc.Default,
		rules:       make([]*rule, 0, len(doc.Policies)),
		byName:      make(map[string]*rule, len(doc.Policies)),
	}

	for _, spec := range doc.Policies {
		compiled, err := compileRule(spec)
		if err != nil {
			return nil, err
		}
		if _, exists := engine.byName[spec.Name]; exists {
			return nil, fmt.Errorf("duplicate policy %q", spec.Name)
		}
		engine.rules = append(engine.rules, compiled)
		engine.byName[spec.Name] = compiled
	}

	if doc.Default != "" {
		if _, ok := engine.byName[doc.Default]; !ok {
			return nil, fmt.Errorf("default policy %q is not defined", doc.Default)
		}
	}
	return engine, nil
}

func compileRule(spec ruleSpec) (*rule, error) {
	err := validation.New(validation.FailFast()).
		AddAssertion(spec.Name != "", "policy name is required").
		AddAssertion(spec.SamplingMethod == model.MethodScan ||
			spec.SamplingMethod == model.MethodMonitor ||
			spec.SamplingMethod == model.MethodDontArchive,
			fmt.Sprintf("policy %q: invalid sampling method %q", spec.Name, spec.SamplingMethod)).
		AddAssertion(spec.SamplingPeriod > 0, fmt.Sprintf("policy %q: sampling period must be positive", spec.Name)).
		AddAssertion(len(spec.DataStores) > 0, fmt.Sprintf("policy %q: at least one data store is required", spec.Name)).
		Validate()
	if err != nil {
		return nil, err
	}

	compiled := &rule{
		config: model.PolicyConfig{
			Name:           spec.Name,
			SamplingMethod: spec.SamplingMethod,
			SamplingPeriod: spec.SamplingPeriod,
			DataStores:     spec.DataStores,
			ArchiveFields:  spec.ArchiveFields,
			ControlPV:      spec.ControlPV,
			Appliance:      spec.Appliance,
		},
		description:  spec.Description,
		sampleTypes:  make(map[model.SampleType]bool, len(spec.Match.SampleTypes)),
		minEventRate: spec.Match.MinEventRate,
		maxEventRate: spec.Match.MaxEventRate,
	}

	for _, pattern := range spec.Match.PVPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("policy %q: invalid pv pattern %q: %w", spec.Name, pattern, err)
		}
		compiled.patterns = append(compiled.patterns, re)
	}
	for _, name := range spec.Match.SampleTypes {
		sampleType, err := model.ParseSampleType(name)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", spec.Name, err)
		}
		compiled.sampleTypes[sampleType] = true
	}
	if compiled.minEventRate != nil && compiled.maxEventRate != nil && *compiled.minEventRate > *compiled.maxEventRate {
		return nil, fmt.Errorf("policy %q: min_event_rate exceeds max_event_rate", spec.Name)
	}
	return compiled, nil
}

// Compute selects the policy for the PV and applies the user's overrides.
//
// Selection order: an explicit policy named in the user params wins, then
// the first rule in file order whose match block accepts the PV and its
// discovered metadata, then the installation default. Identical inputs
// always produce identical output.
func (e *Engine) Compute(pvName string, meta *model.MetaInfo, params *model.UserSpecifiedSamplingParams) (*model.PolicyConfig, error) {
	selected, err := e.selectRule(pvName, meta, params)
	if err != nil {
		return nil, err
	}

	config := selected.config.Clone()
	if params != nil {
		if params.SamplingPeriod > 0 {
			config.SamplingPeriod = params.SamplingPeriod
		}
		if params.SamplingMethod != "" {
			config.SamplingMethod = params.SamplingMethod
		}
		if params.ControllingPV != "" {
			config.ControlPV = params.ControllingPV
		}
		if len(params.ArchiveFields) > 0 {
			config.ArchiveFields = append([]string(nil), params.ArchiveFields...)
		}
	}
	return config, nil
}

func (e *Engine) selectRule(pvName string, meta *model.MetaInfo, params *model.UserSpecifiedSamplingParams) (*rule, error) {
	if params != nil && params.PolicyName != "" {
		selected, ok := e.byName[params.PolicyName]
		if !ok {
			return nil, fmt.Errorf("%w: policy %q", ErrNoPolicyMatched, params.PolicyName)
		}
		return selected, nil
	}

	for _, candidate := range e.rules {
		if candidate.matches(pvName, meta) {
			return candidate, nil
		}
	}

	if e.defaultName != "" {
		return e.byName[e.defaultName], nil
	}
	return nil, fmt.Errorf("%w: pv %q", ErrNoPolicyMatched, pvName)
}

// Catalog returns the policy names mapped to their human-readable
// descriptions.
func (e *Engine) Catalog() map[string]string {
	catalog := make(map[string]string, len(e.rules))
	for _, r := range e.rules {
		catalog[r.config.Name] = r.description
	}
	return catalog
}

// Text returns the rule document as loaded, for display to operators.
func (e *Engine) Text() string {
	return e.text
}
