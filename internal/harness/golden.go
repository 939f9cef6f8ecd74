package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/croftlab/agrisense/internal/engine"
	"github.com/croftlab/agrisense/internal/ir"
)

// TraceSnapshot captures a scenario execution for golden comparison.
//
// Everything in it is deterministic: fact ids come from the session's
// logical clock, firings from the total conflict-resolution order, and
// map keys are sorted by the JSON encoder. Identical rule bases and
// observations always produce byte-identical snapshots.
type TraceSnapshot struct {
	ScenarioName string                `json:"scenario_name"`
	Token        string                `json:"token"`
	Cycles       int                   `json:"cycles"`
	Firings      []engine.FiringRecord `json:"firings"`
	Conclusions  []ir.Fact             `json:"conclusions"`
}

// RunWithGolden executes a scenario and compares its trace against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails; trace mismatches fail
// the test via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-obtained result against a golden
// file, without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Token:        result.Token,
		Cycles:       result.Cycles,
		Firings:      result.Firings,
		Conclusions:  result.Conclusions,
	}

	traceJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
