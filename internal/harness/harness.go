// Package harness provides a conformance testing framework for the
// inference engine.
//
// A scenario loads a real CUE knowledge base, asserts its observations
// into a fresh session, drives the actual engine to quiescence, and
// evaluates assertions against the conclusions and firing log the
// engine produced. Nothing is manufactured: a scenario that passes did
// so because the engine reasoned its way there.
//
// Determinism comes for free from the engine (logical fact ids, total
// conflict-resolution order), so scenario traces are stable across runs
// and suitable for golden file comparison.
package harness

import (
	"context"
	"fmt"

	"github.com/croftlab/agrisense/internal/compiler"
	"github.com/croftlab/agrisense/internal/engine"
	"github.com/croftlab/agrisense/internal/ir"
	"github.com/croftlab/agrisense/internal/rulelib"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Token is the session token the scenario ran under.
	Token string `json:"token"`

	// Conclusions are the engine's output facts in assertion order.
	Conclusions []ir.Fact `json:"conclusions"`

	// Firings is the complete firing log.
	Firings []engine.FiringRecord `json:"firings"`

	// Cycles is the number of firings before quiescence.
	Cycles int `json:"cycles"`

	// CycleLimitHit marks runs that ended at the firing ceiling.
	CycleLimitHit bool `json:"cycle_limit_hit,omitempty"`
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Run executes a scenario against the real engine and returns the
// result. Each scenario runs in a fresh session for isolation.
//
// Execution flow:
//  1. Compile the scenario's CUE knowledge base
//  2. Start a session with the scenario's fixed token
//  3. Assert observations in order
//  4. Drive inference to quiescence (or the cycle ceiling)
//  5. Evaluate assertions against conclusions and the firing log
func Run(scenario *Scenario) (*Result, error) {
	lib, err := loadLibrary(scenario.Rules)
	if err != nil {
		return nil, err
	}

	token := scenario.SessionToken
	if token == "" {
		token = "scenario-" + scenario.Name
	}

	opts := []engine.Option{engine.WithTokenGenerator(engine.NewFixedGenerator(token))}
	if scenario.MaxCycles > 0 {
		opts = append(opts, engine.WithMaxCycles(scenario.MaxCycles))
	}
	eng := engine.New(lib, opts...)

	ctx := context.Background()
	sess, err := eng.StartSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer sess.End()

	for i, obs := range scenario.Observations {
		attrs, err := ir.AttrsFromAny(obs.Attrs)
		if err != nil {
			return nil, fmt.Errorf("observations[%d]: %w", i, err)
		}
		if _, err := sess.AssertObservation(ctx, obs.Kind, attrs); err != nil {
			return nil, fmt.Errorf("observations[%d]: %w", i, err)
		}
	}

	result := &Result{Pass: true, Token: token}

	conclusions, err := sess.Run(ctx)
	switch {
	case engine.IsCycleLimit(err):
		result.CycleLimitHit = true
		if !scenario.ExpectCycleLimit {
			result.AddError(fmt.Sprintf("inference hit the cycle ceiling: %v", err))
		}
	case err != nil:
		return nil, fmt.Errorf("inference: %w", err)
	case scenario.ExpectCycleLimit:
		result.AddError("expected the cycle ceiling to be hit, but inference quiesced")
	}

	result.Conclusions = conclusions
	result.Firings = sess.Firings()
	result.Cycles = sess.Cycles()

	for i, assertion := range scenario.Assertions {
		if err := evaluate(&assertion, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] (%s): %v", i, assertion.Type, err))
		}
	}

	return result, nil
}

// loadLibrary compiles a CUE rule directory into a validated library.
func loadLibrary(dir string) (*rulelib.Library, error) {
	bundle, errs := compiler.LoadDir(dir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("compile rules: %w", errs[0])
	}

	lib, err := rulelib.New(bundle.Rules, bundle.Outputs)
	if err != nil {
		return nil, fmt.Errorf("validate rules: %w", err)
	}
	return lib, nil
}
