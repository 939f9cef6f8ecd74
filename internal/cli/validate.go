package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/croftlab/agrisense/internal/compiler"
	"github.com/croftlab/agrisense/internal/rulelib"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Rules   int      `json:"rules"`
	Outputs []string `json:"outputs,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Validate a CUE knowledge base without running inference",
		Long: `Validate compiles every CUE file in the rules directory and checks
the result against the rule schema: unique names, known operators,
bound variables, declared output kinds. All problems are reported, not
just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, rulesDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	bundle, loadErrs := compiler.LoadDir(rulesDir, compiler.LoadModeCollectAll)

	result := ValidationResult{Valid: true}
	errCode := ErrCodeCompile
	for i, err := range loadErrs {
		if i == 0 {
			errCode = codeForLoadError(err)
		}
		result.Errors = append(result.Errors, err.Error())
		result.Valid = false
	}

	if bundle != nil {
		result.Rules = len(bundle.Rules)
		result.Outputs = bundle.Outputs
		formatter.VerboseLog("Found %d CUE file(s) in %s", bundle.FileCount, rulesDir)

		if result.Valid {
			if _, err := rulelib.New(bundle.Rules, bundle.Outputs); err != nil {
				result.Errors = append(result.Errors, err.Error())
				result.Valid = false
			}
		}
	}

	if !result.Valid {
		formatter.Error(errCode,
			fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)),
			result.Errors)
		return NewExitError(ExitFailure, "validation failed")
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Valid: %d rule(s), output kinds: %s\n",
		result.Rules, strings.Join(result.Outputs, ", "))
	return formatter.SuccessText(text.String(), result)
}
