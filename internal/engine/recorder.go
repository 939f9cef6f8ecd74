package engine

import (
	"context"

	"github.com/croftlab/agrisense/internal/ir"
)

// Fact sources recorded in the trace.
const (
	SourceObservation = "observation" // asserted by the caller
	SourceDerived     = "derived"     // asserted by a rule action
)

// Recorder receives the audit trail of a session: observed and derived
// facts, rule firings, and final conclusions. Implemented by the SQLite
// trace store; a nil Recorder on the engine disables tracing entirely.
//
// Recorder failures never abort inference - the engine logs them and
// continues, since the trace is diagnostics, not the reasoning core.
type Recorder interface {
	BeginSession(ctx context.Context, token string) error
	RecordFact(ctx context.Context, token string, fact ir.Fact, source string) error
	RecordFiring(ctx context.Context, token string, firing FiringRecord) error
	RecordConclusion(ctx context.Context, token string, fact ir.Fact) error
}
