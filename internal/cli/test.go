package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/croftlab/agrisense/internal/harness"
)

// TestReport summarizes a scenario batch.
type TestReport struct {
	Total    int              `json:"total"`
	Passed   int              `json:"passed"`
	Failed   int              `json:"failed"`
	Failures []ScenarioResult `json:"failures,omitempty"`
}

// ScenarioResult is one scenario's outcome.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <scenario.yaml | scenario-dir>",
		Short: "Run conformance scenarios against the engine",
		Long: `Test runs one scenario file, or every *.yaml scenario in a
directory, through the real inference engine and evaluates each
scenario's assertions. Exits non-zero if any scenario fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, args[0], cmd)
		},
	}
}

func runTest(rootOpts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	paths, err := collectScenarioPaths(path)
	if err != nil {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return NewExitError(ExitCommandError, "collecting scenarios failed")
	}

	report := TestReport{}
	var lines []string

	for _, scenarioPath := range paths {
		scenario, err := harness.LoadScenario(scenarioPath)
		if err != nil {
			report.Total++
			report.Failed++
			report.Failures = append(report.Failures, ScenarioResult{
				Name:   filepath.Base(scenarioPath),
				Errors: []string{err.Error()},
			})
			lines = append(lines, fmt.Sprintf("FAIL %s: %v", filepath.Base(scenarioPath), err))
			continue
		}

		formatter.VerboseLog("Running scenario %s", scenario.Name)
		result, err := harness.Run(scenario)
		if err != nil {
			report.Total++
			report.Failed++
			report.Failures = append(report.Failures, ScenarioResult{
				Name:   scenario.Name,
				Errors: []string{err.Error()},
			})
			lines = append(lines, fmt.Sprintf("FAIL %s: %v", scenario.Name, err))
			continue
		}

		report.Total++
		if result.Pass {
			report.Passed++
			lines = append(lines, fmt.Sprintf("PASS %s (%d cycles, %d conclusions)",
				scenario.Name, result.Cycles, len(result.Conclusions)))
		} else {
			report.Failed++
			report.Failures = append(report.Failures, ScenarioResult{
				Name:   scenario.Name,
				Errors: result.Errors,
			})
			lines = append(lines, fmt.Sprintf("FAIL %s:", scenario.Name))
			for _, msg := range result.Errors {
				lines = append(lines, "  "+msg)
			}
		}
	}

	var text strings.Builder
	for _, line := range lines {
		text.WriteString(line)
		text.WriteByte('\n')
	}
	fmt.Fprintf(&text, "\n%d scenario(s): %d passed, %d failed\n",
		report.Total, report.Passed, report.Failed)

	if err := formatter.SuccessText(text.String(), report); err != nil {
		return err
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed))
	}
	return nil
}

// collectScenarioPaths expands a path into scenario files: the file
// itself, or every *.yaml directly in the directory, sorted.
func collectScenarioPaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path not found: %s", path)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext := filepath.Ext(entry.Name()); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", path)
	}
	return paths, nil
}
