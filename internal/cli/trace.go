package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/croftlab/agrisense/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	DBPath string
	List   bool
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{}

	cmd := &cobra.Command{
		Use:   "trace [session-token]",
		Short: "Inspect a persisted session trace",
		Long: `Trace reads a session's audit trail from a SQLite database written
by run --db: every observed and derived fact, every rule firing, and
the final conclusions.

With --list, prints all recorded session tokens instead.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) > 0 {
				token = args[0]
			}
			return runTrace(rootOpts, opts, token, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite trace database path (required)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded session tokens")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(rootOpts *RootOptions, opts *TraceOptions, token string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	ctx := cmd.Context()

	st, err := store.Open(opts.DBPath)
	if err != nil {
		formatter.Error(ErrCodeTrace, err.Error(), nil)
		return NewExitError(ExitCommandError, "opening trace database failed")
	}
	defer st.Close()

	if opts.List {
		tokens, err := st.ListSessions(ctx)
		if err != nil {
			formatter.Error(ErrCodeTrace, err.Error(), nil)
			return NewExitError(ExitCommandError, "listing sessions failed")
		}
		return formatter.SuccessText(renderSessionList(tokens), tokens)
	}

	if token == "" {
		formatter.Error(ErrCodeTrace, "session token required (or use --list)", nil)
		return NewExitError(ExitCommandError, "missing session token")
	}

	trace, err := st.ReadTrace(ctx, token)
	if err != nil {
		formatter.Error(ErrCodeTrace, err.Error(), nil)
		if errors.Is(err, store.ErrSessionNotFound) {
			return NewExitError(ExitFailure, "session not found")
		}
		return NewExitError(ExitCommandError, "reading trace failed")
	}

	return formatter.SuccessText(renderTrace(trace), trace)
}

func renderSessionList(tokens []string) string {
	if len(tokens) == 0 {
		return "No recorded sessions.\n"
	}
	var b strings.Builder
	for _, token := range tokens {
		b.WriteString(token)
		b.WriteByte('\n')
	}
	return b.String()
}

func renderTrace(trace *store.Trace) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s (engine %s, ir %s)\n\n",
		trace.Token, trace.EngineVersion, trace.IRVersion)

	b.WriteString("Facts:\n")
	for _, fact := range trace.Facts {
		fmt.Fprintf(&b, "  #%d %s %s [%s]\n", fact.FactID, fact.Kind, fact.Attrs, fact.Source)
	}

	b.WriteString("\nFirings:\n")
	for _, firing := range trace.Firings {
		fmt.Fprintf(&b, "  cycle %d: %s (priority %d) binding=%s support=%s\n",
			firing.Cycle, firing.Rule, firing.Priority, firing.Binding, firing.Support)
	}

	b.WriteString("\nConclusions:\n")
	for _, fact := range trace.Conclusions {
		fmt.Fprintf(&b, "  #%d %s %s\n", fact.FactID, fact.Kind, fact.Attrs)
	}

	return b.String()
}
