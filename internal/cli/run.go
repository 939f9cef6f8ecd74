package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/croftlab/agrisense/internal/engine"
	"github.com/croftlab/agrisense/internal/ir"
	"github.com/croftlab/agrisense/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	RulesDir     string
	Observations string
	DBPath       string
	MaxCycles    int
}

// RunResult is the run command's output payload.
type RunResult struct {
	Token       string    `json:"token"`
	Cycles      int       `json:"cycles"`
	Conclusions []ir.Fact `json:"conclusions"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an advisory consultation",
		Long: `Run compiles the knowledge base, asserts the observations from a
YAML file into a fresh session, drives inference to quiescence, and
prints the conclusions.

With --db, the full session trace (facts, firings, conclusions) is
also persisted to a SQLite database for later inspection with the
trace command.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RulesDir, "rules", "rules", "CUE knowledge base directory")
	cmd.Flags().StringVar(&opts.Observations, "observations", "", "observation YAML file (required)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite trace database path (optional)")
	cmd.Flags().IntVar(&opts.MaxCycles, "max-cycles", 0, "override the firing ceiling (0 = default)")
	cmd.MarkFlagRequired("observations")

	return cmd
}

func runRun(rootOpts *RootOptions, opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	ctx := cmd.Context()

	lib, err := loadLibrary(formatter, opts.RulesDir)
	if err != nil {
		return err
	}

	observations, err := LoadObservations(opts.Observations)
	if err != nil {
		formatter.Error(ErrCodeObservations, err.Error(), nil)
		return NewExitError(ExitCommandError, "loading observations failed")
	}

	engOpts := []engine.Option{}
	if opts.MaxCycles > 0 {
		engOpts = append(engOpts, engine.WithMaxCycles(opts.MaxCycles))
	}
	if opts.DBPath != "" {
		st, err := store.Open(opts.DBPath)
		if err != nil {
			formatter.Error(ErrCodeTrace, err.Error(), nil)
			return NewExitError(ExitCommandError, "opening trace database failed")
		}
		defer st.Close()
		engOpts = append(engOpts, engine.WithRecorder(st))
	}

	eng := engine.New(lib, engOpts...)
	sess, err := eng.StartSession(ctx)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, "starting session failed")
	}
	defer sess.End()

	for i, obs := range observations {
		attrs, err := ir.AttrsFromAny(obs.Attrs)
		if err != nil {
			formatter.Error(ErrCodeObservations,
				fmt.Sprintf("observations[%d]: %v", i, err), nil)
			return NewExitError(ExitCommandError, "bad observation")
		}
		if _, err := sess.AssertObservation(ctx, obs.Kind, attrs); err != nil {
			formatter.Error(ErrCodeObservations,
				fmt.Sprintf("observations[%d] (%s): %v", i, obs.Kind, err), nil)
			return NewExitError(ExitCommandError, "asserting observation failed")
		}
	}

	conclusions, err := sess.Run(ctx)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		if engine.IsCycleLimit(err) {
			return NewExitError(ExitFailure, "inference hit the cycle ceiling")
		}
		return NewExitError(ExitCommandError, "inference failed")
	}

	result := RunResult{
		Token:       sess.Token(),
		Cycles:      sess.Cycles(),
		Conclusions: conclusions,
	}

	return formatter.SuccessText(renderRunResult(&result), result)
}

func renderRunResult(r *RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", r.Token)
	fmt.Fprintf(&b, "Quiescent after %d cycle(s)\n\n", r.Cycles)

	if len(r.Conclusions) == 0 {
		b.WriteString("No conclusions.\n")
		return b.String()
	}

	b.WriteString("Conclusions:\n")
	for _, fact := range r.Conclusions {
		fmt.Fprintf(&b, "  %s %s\n", fact.Kind, fact.Attrs.String())
	}
	return b.String()
}
