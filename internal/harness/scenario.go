package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a rule directory, a
// sequence of observations, and assertions over the resulting
// conclusions and firing log.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the path to the CUE knowledge base directory.
	// Relative paths resolve against the scenario file location.
	Rules string `yaml:"rules"`

	// Observations are asserted into working memory in order before
	// inference runs.
	Observations []Observation `yaml:"observations"`

	// Assertions validate the conclusions and the firing log.
	// Supported types: conclusion_contains, conclusion_count,
	// firing_order, firing_count, quiescent_cycles.
	Assertions []Assertion `yaml:"assertions"`

	// SessionToken is an optional fixed token for deterministic traces.
	// Defaults to "scenario-" + Name.
	SessionToken string `yaml:"session_token,omitempty"`

	// MaxCycles overrides the engine's firing ceiling when positive.
	MaxCycles int `yaml:"max_cycles,omitempty"`

	// ExpectCycleLimit marks scenarios that are supposed to hit the
	// ceiling (oscillating rule sets under test).
	ExpectCycleLimit bool `yaml:"expect_cycle_limit,omitempty"`
}

// Observation is one caller-supplied fact.
type Observation struct {
	Kind  string         `yaml:"kind"`
	Attrs map[string]any `yaml:"attrs"`
}

// Assertion validates conclusions or the firing log.
type Assertion struct {
	// Type selects the assertion:
	//  - "conclusion_contains": a conclusion of Kind with Attrs (subset match) exists
	//  - "conclusion_count": exactly Count conclusions, optionally filtered by Kind
	//  - "firing_order": Rules appear in the firing log in this relative order
	//  - "firing_count": the named Rule fired exactly Count times
	//  - "quiescent_cycles": the session quiesced after exactly Count firings
	Type string `yaml:"type"`

	// Kind is a fact kind (conclusion_contains, conclusion_count).
	Kind string `yaml:"kind,omitempty"`

	// Attrs are expected attribute values, subset match (conclusion_contains).
	Attrs map[string]any `yaml:"attrs,omitempty"`

	// Rule names a single rule (firing_count).
	Rule string `yaml:"rule,omitempty"`

	// Rules is an ordered rule name list (firing_order).
	Rules []string `yaml:"rules,omitempty"`

	// Count is the expected number (conclusion_count, firing_count,
	// quiescent_cycles).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertConclusionContains = "conclusion_contains"
	AssertConclusionCount    = "conclusion_count"
	AssertFiringOrder        = "firing_order"
	AssertFiringCount        = "firing_count"
	AssertQuiescentCycles    = "quiescent_cycles"
)

// LoadScenario reads and parses a scenario YAML file, resolving the
// rules path relative to the scenario file's directory.
// Returns an error if the file is malformed, contains unknown fields
// (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Rules == "" {
		return fmt.Errorf("rules directory is required")
	}
	if info, err := os.Stat(s.Rules); err != nil || !info.IsDir() {
		return fmt.Errorf("rules directory not found: %s", s.Rules)
	}
	if len(s.Observations) == 0 {
		return fmt.Errorf("observations list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, obs := range s.Observations {
		if obs.Kind == "" {
			return fmt.Errorf("observations[%d]: kind is required", i)
		}
		if obs.Attrs == nil {
			return fmt.Errorf("observations[%d]: attrs is required (use empty map if none)", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertConclusionContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for conclusion_contains", index)
		}
	case AssertConclusionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for conclusion_count", index)
		}
	case AssertFiringOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for firing_order", index)
		}
	case AssertFiringCount:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for firing_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for firing_count", index)
		}
	case AssertQuiescentCycles:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for quiescent_cycles", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
