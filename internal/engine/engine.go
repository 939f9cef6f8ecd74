package engine

import (
	"context"
	"log/slog"

	"github.com/croftlab/agrisense/internal/ir"
	"github.com/croftlab/agrisense/internal/rulelib"
	"github.com/croftlab/agrisense/internal/wm"
)

// DefaultMaxCycles is the default ceiling on firings per inference run.
// Generous on purpose: it exists to catch oscillating rule sets
// (assert/retract loops), not to bound well-behaved ones.
const DefaultMaxCycles = 10000

// firingLogTail is how many trailing firings a CycleLimitError carries.
const firingLogTail = 20

// State identifies where a session is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateMatching
	StateFiring
	StateQuiescent
	StateCycleLimit
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMatching:
		return "matching"
	case StateFiring:
		return "firing"
	case StateQuiescent:
		return "quiescent"
	case StateCycleLimit:
		return "cycle_limit_exceeded"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// FiringRecord describes one rule firing for the trace and diagnostics.
type FiringRecord struct {
	Cycle       int        `json:"cycle"`
	Rule        string     `json:"rule"`
	Priority    int        `json:"priority"`
	Binding     ir.Binding `json:"binding"`
	BindingHash string     `json:"binding_hash"`
	Support     []int64    `json:"support"`
}

// Engine owns the shared rule library and session configuration.
// Safe for concurrent use: StartSession may be called from any
// goroutine, and the library is never written after construction.
type Engine struct {
	lib       *rulelib.Library
	tokens    TokenGenerator
	maxCycles int
	recorder  Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxCycles sets the per-run firing ceiling.
func WithMaxCycles(n int) Option {
	return func(e *Engine) { e.maxCycles = n }
}

// WithRecorder attaches a trace recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTokenGenerator overrides session token generation (for tests).
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// New creates an Engine over a validated rule library.
func New(lib *rulelib.Library, opts ...Option) *Engine {
	e := &Engine{
		lib:       lib,
		tokens:    UUIDv7Generator{},
		maxCycles: DefaultMaxCycles,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Library returns the shared rule library.
func (e *Engine) Library() *rulelib.Library {
	return e.lib
}

// Session is one advisory consultation: a private working memory plus
// the inference driver state machine.
//
// Lifecycle: Idle -> Matching -> Firing -> Matching -> ... -> Quiescent,
// or Matching -> CycleLimitExceeded on the error path. AssertObservation
// is legal only before or between runs; End releases working memory.
//
// A Session is NOT safe for concurrent use - one goroutine owns it.
type Session struct {
	token  string
	engine *Engine
	store  *wm.Store
	state  State

	cycles  int
	fired   map[string]bool
	firings []FiringRecord
}

// StartSession creates a fresh session with empty working memory.
func (e *Engine) StartSession(ctx context.Context) (*Session, error) {
	s := &Session{
		token:  e.tokens.Generate(),
		engine: e,
		store:  wm.NewStore(),
		state:  StateIdle,
		fired:  make(map[string]bool),
	}

	if e.recorder != nil {
		if err := e.recorder.BeginSession(ctx, s.token); err != nil {
			slog.Error("trace recorder begin failed", "session", s.token, "error", err)
		}
	}

	slog.Debug("session started", "session", s.token, "rules", e.lib.Len())
	return s, nil
}

// Token returns the session's correlation token.
func (s *Session) Token() string { return s.token }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Cycles returns the number of firings so far.
func (s *Session) Cycles() int { return s.cycles }

// Firings returns a copy of the full firing log, in firing order.
func (s *Session) Firings() []FiringRecord {
	return append([]FiringRecord(nil), s.firings...)
}

// FactCount returns the number of live facts in working memory.
func (s *Session) FactCount() int {
	if s.store == nil {
		return 0
	}
	return s.store.Size()
}

// AssertObservation adds a caller-supplied fact to working memory.
// Returns the fact id, or *wm.DuplicateFactError if the knowledge is
// already live (recoverable - the fact already holds).
//
// Usable only before or between inference runs.
func (s *Session) AssertObservation(ctx context.Context, kind string, attrs ir.Attrs) (int64, error) {
	switch s.state {
	case StateEnded:
		return 0, ErrSessionEnded
	case StateMatching, StateFiring:
		return 0, ErrInferenceRunning
	}

	id, err := s.store.Assert(kind, attrs)
	if err != nil {
		return 0, err
	}

	// New observations re-open a quiescent session for another run.
	s.state = StateIdle

	s.record(ctx, func(r Recorder) error {
		fact, _ := s.store.Get(id)
		return r.RecordFact(ctx, s.token, fact, SourceObservation)
	})

	slog.Debug("observation asserted",
		"session", s.token,
		"fact_id", id,
		"kind", kind,
	)
	return id, nil
}

// Run drives the match->resolve->fire cycle to quiescence and returns
// the session's conclusions: live output-kind facts in assertion order,
// deduplicated by construction (the store forbids duplicate knowledge).
//
// Determinism: identical rule library and identical observation sequence
// produce an identical conclusion list on every execution.
//
// Cancellation is checked at the top of each Matching step, between
// cycles - never mid-firing, so one rule's action list is always applied
// without leaving working memory half-mutated.
func (s *Session) Run(ctx context.Context) ([]ir.Fact, error) {
	switch s.state {
	case StateEnded:
		return nil, ErrSessionEnded
	case StateMatching, StateFiring:
		return nil, ErrInferenceRunning
	}

	slog.Debug("inference starting", "session", s.token, "facts", s.store.Size())

	for {
		s.state = StateMatching

		if err := ctx.Err(); err != nil {
			s.state = StateIdle
			slog.Info("inference aborted", "session", s.token, "cycles", s.cycles)
			return nil, err
		}

		acts, err := Match(s.engine.lib, s.store)
		if err != nil {
			s.state = StateIdle
			return nil, err
		}
		eligible := s.filterFired(acts)

		if len(eligible) == 0 {
			s.state = StateQuiescent
			conclusions := Collect(s.engine.lib, s.store)

			for _, fact := range conclusions {
				s.record(ctx, func(r Recorder) error {
					return r.RecordConclusion(ctx, s.token, fact)
				})
			}

			slog.Info("inference quiescent",
				"session", s.token,
				"cycles", s.cycles,
				"conclusions", len(conclusions),
			)
			return conclusions, nil
		}

		if s.cycles >= s.engine.maxCycles {
			s.state = StateCycleLimit
			tail := s.firings
			if len(tail) > firingLogTail {
				tail = tail[len(tail)-firingLogTail:]
			}
			err := &CycleLimitError{
				Session:     s.token,
				Cycles:      s.cycles,
				Limit:       s.engine.maxCycles,
				LastFirings: append([]FiringRecord(nil), tail...),
			}
			slog.Error("cycle limit exceeded",
				"session", s.token,
				"cycles", s.cycles,
				"limit", s.engine.maxCycles,
			)
			return nil, err
		}

		s.state = StateFiring
		s.fire(ctx, Select(eligible))
		s.cycles++
	}
}

// End releases the session's working memory. The shared rule library is
// untouched. Idempotent.
func (s *Session) End() {
	if s.state == StateEnded {
		return
	}
	s.state = StateEnded
	s.store = nil
	slog.Debug("session ended", "session", s.token, "cycles", s.cycles)
}

// filterFired drops activations this session has already fired
// (refraction). Without it, a rule whose asserts are all duplicates
// would stay eligible forever.
func (s *Session) filterFired(acts []*Activation) []*Activation {
	eligible := acts[:0]
	for _, act := range acts {
		if !s.fired[act.refractionKey()] {
			eligible = append(eligible, act)
		}
	}
	return eligible
}

// fire applies one activation's actions in declaration order.
//
// Application is best-effort, not transactional: a retract that matches
// no live fact (typically removed by an earlier action in the same
// firing) is logged and skipped, and the remaining actions still apply.
// Rules must not assume all-or-nothing firing.
func (s *Session) fire(ctx context.Context, act *Activation) {
	s.fired[act.refractionKey()] = true

	rec := FiringRecord{
		Cycle:       s.cycles + 1,
		Rule:        act.Rule.Name,
		Priority:    act.Rule.Priority,
		Binding:     act.Binding.Clone(),
		BindingHash: act.BindingHash,
		Support:     append([]int64(nil), act.Support...),
	}
	s.firings = append(s.firings, rec)

	s.record(ctx, func(r Recorder) error {
		return r.RecordFiring(ctx, s.token, rec)
	})

	slog.Info("rule fired",
		"session", s.token,
		"rule", act.Rule.Name,
		"priority", act.Rule.Priority,
		"cycle", rec.Cycle,
	)

	for _, action := range act.Rule.Actions {
		attrs := resolveAttrs(action.Attrs, act.Binding)

		switch action.Op {
		case ir.ActAssert:
			id, err := s.store.Assert(action.Kind, attrs)
			if wm.IsDuplicateFact(err) {
				// Benign: the knowledge already holds.
				slog.Debug("assert skipped, fact already live",
					"session", s.token,
					"rule", act.Rule.Name,
					"kind", action.Kind,
				)
				continue
			}
			if err != nil {
				slog.Error("assert failed",
					"session", s.token,
					"rule", act.Rule.Name,
					"kind", action.Kind,
					"error", err,
				)
				continue
			}
			s.record(ctx, func(r Recorder) error {
				fact, _ := s.store.Get(id)
				return r.RecordFact(ctx, s.token, fact, SourceDerived)
			})

		case ir.ActRetract:
			s.retractMatching(act.Rule.Name, action.Kind, attrs)
		}
	}
}

// retractMatching removes every live fact of kind whose attributes
// match the resolved template (subset equality). Matching no fact is
// the UnknownFact diagnostic case: logged, never fatal.
func (s *Session) retractMatching(rule, kind string, template ir.Attrs) {
	var ids []int64
	for fact := range s.store.Query(kind, func(f ir.Fact) bool {
		return attrsSubset(template, f.Attrs)
	}) {
		ids = append(ids, fact.ID)
	}

	if len(ids) == 0 {
		slog.Warn("retract matched no live fact",
			"session", s.token,
			"rule", rule,
			"kind", kind,
			"template", template.String(),
		)
		return
	}

	for _, id := range ids {
		if err := s.store.Retract(id); err != nil {
			slog.Warn("retract failed",
				"session", s.token,
				"rule", rule,
				"fact_id", id,
				"error", err,
			)
		}
	}
}

// resolveAttrs substitutes bound variables into an action template.
// Library validation guarantees every referenced variable is bound.
func resolveAttrs(template map[string]ir.Term, binding ir.Binding) ir.Attrs {
	attrs := make(ir.Attrs, len(template))
	for name, term := range template {
		if term.Var != "" {
			attrs[name] = binding[term.Var]
			continue
		}
		attrs[name] = term.Lit
	}
	return attrs
}

// attrsSubset reports whether every attribute in sub equals the
// corresponding attribute in super.
func attrsSubset(sub, super ir.Attrs) bool {
	for k, v := range sub {
		sv, ok := super[k]
		if !ok || !ir.Equal(v, sv) {
			return false
		}
	}
	return true
}

// record invokes fn against the engine's recorder, logging failures.
// Trace failures never abort inference.
func (s *Session) record(ctx context.Context, fn func(Recorder) error) {
	if s.engine.recorder == nil {
		return
	}
	if err := fn(s.engine.recorder); err != nil {
		slog.Error("trace recorder write failed", "session", s.token, "error", err)
	}
}
