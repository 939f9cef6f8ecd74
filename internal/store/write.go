package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/croftlab/agrisense/internal/engine"
	"github.com/croftlab/agrisense/internal/ir"
)

// Store implements the engine's trace recorder.
var _ engine.Recorder = (*Store)(nil)

// BeginSession registers a session row. Idempotent: re-registering an
// existing token is a no-op.
func (s *Store) BeginSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, engine_version, ir_version)
		VALUES (?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, token, ir.EngineVersion, ir.IRVersion)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// RecordFact inserts a fact row. The attributes are serialized to
// canonical JSON per RFC 8785 so traces diff cleanly across runs.
//
// Uses ON CONFLICT DO NOTHING for idempotency - a fact id is written
// at most once per session.
func (s *Store) RecordFact(ctx context.Context, token string, fact ir.Fact, source string) error {
	attrsJSON, err := ir.MarshalCanonical(fact.Attrs)
	if err != nil {
		return fmt.Errorf("record fact: %w", err)
	}
	hash, err := ir.FactHash(fact.Kind, fact.Attrs)
	if err != nil {
		return fmt.Errorf("record fact: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO facts (session_token, fact_id, kind, attrs, hash, source)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_token, fact_id) DO NOTHING
	`, token, fact.ID, fact.Kind, string(attrsJSON), hash, source)
	if err != nil {
		return fmt.Errorf("record fact: %w", err)
	}
	return nil
}

// RecordFiring inserts a firing row.
//
// The UNIQUE constraint on (session, rule, binding_hash, support)
// mirrors the engine's refraction key; ON CONFLICT DO NOTHING makes a
// replayed write a no-op rather than an error.
func (s *Store) RecordFiring(ctx context.Context, token string, firing engine.FiringRecord) error {
	bindingJSON, err := ir.MarshalCanonical(firing.Binding)
	if err != nil {
		return fmt.Errorf("record firing: %w", err)
	}
	supportJSON, err := json.Marshal(firing.Support)
	if err != nil {
		return fmt.Errorf("record firing: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO firings
		(session_token, cycle, rule, priority, binding, binding_hash, support)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_token, rule, binding_hash, support) DO NOTHING
	`, token, firing.Cycle, firing.Rule, firing.Priority,
		string(bindingJSON), firing.BindingHash, string(supportJSON))
	if err != nil {
		return fmt.Errorf("record firing: %w", err)
	}
	return nil
}

// RecordConclusion inserts a conclusion row. Idempotent per fact id.
func (s *Store) RecordConclusion(ctx context.Context, token string, fact ir.Fact) error {
	attrsJSON, err := ir.MarshalCanonical(fact.Attrs)
	if err != nil {
		return fmt.Errorf("record conclusion: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conclusions (session_token, fact_id, kind, attrs)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_token, fact_id) DO NOTHING
	`, token, fact.ID, fact.Kind, string(attrsJSON))
	if err != nil {
		return fmt.Errorf("record conclusion: %w", err)
	}
	return nil
}
