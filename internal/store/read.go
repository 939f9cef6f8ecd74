package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when reading a trace for an unknown token.
var ErrSessionNotFound = errors.New("session not found")

// FactRow is one persisted fact, attributes as canonical JSON.
type FactRow struct {
	FactID int64  `json:"fact_id"`
	Kind   string `json:"kind"`
	Attrs  string `json:"attrs"`
	Hash   string `json:"hash,omitempty"`
	Source string `json:"source,omitempty"`
}

// FiringRow is one persisted rule firing.
type FiringRow struct {
	Cycle       int    `json:"cycle"`
	Rule        string `json:"rule"`
	Priority    int    `json:"priority"`
	Binding     string `json:"binding"`
	BindingHash string `json:"binding_hash"`
	Support     string `json:"support"`
}

// Trace is the full persisted record of one session.
type Trace struct {
	Token         string      `json:"token"`
	EngineVersion string      `json:"engine_version"`
	IRVersion     string      `json:"ir_version"`
	Facts         []FactRow   `json:"facts"`
	Firings       []FiringRow `json:"firings"`
	Conclusions   []FactRow   `json:"conclusions"`
}

// ReadTrace loads a session's complete trace. Facts and conclusions
// come back in fact id order, firings in cycle order.
func (s *Store) ReadTrace(ctx context.Context, token string) (*Trace, error) {
	trace := &Trace{Token: token}

	err := s.db.QueryRowContext(ctx, `
		SELECT engine_version, ir_version FROM sessions WHERE token = ?
	`, token).Scan(&trace.EngineVersion, &trace.IRVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, token)
	}
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	trace.Facts, err = s.readFacts(ctx, token)
	if err != nil {
		return nil, err
	}
	trace.Firings, err = s.readFirings(ctx, token)
	if err != nil {
		return nil, err
	}
	trace.Conclusions, err = s.readConclusions(ctx, token)
	if err != nil {
		return nil, err
	}

	return trace, nil
}

// ListSessions returns every recorded session token, ordered.
// UUIDv7 tokens sort by creation time.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token FROM sessions ORDER BY token`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (s *Store) readFacts(ctx context.Context, token string) ([]FactRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fact_id, kind, attrs, hash, source
		FROM facts WHERE session_token = ? ORDER BY fact_id
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}
	defer rows.Close()

	var facts []FactRow
	for rows.Next() {
		var f FactRow
		if err := rows.Scan(&f.FactID, &f.Kind, &f.Attrs, &f.Hash, &f.Source); err != nil {
			return nil, fmt.Errorf("read facts: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (s *Store) readFirings(ctx context.Context, token string) ([]FiringRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle, rule, priority, binding, binding_hash, support
		FROM firings WHERE session_token = ? ORDER BY cycle
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read firings: %w", err)
	}
	defer rows.Close()

	var firings []FiringRow
	for rows.Next() {
		var f FiringRow
		if err := rows.Scan(&f.Cycle, &f.Rule, &f.Priority, &f.Binding, &f.BindingHash, &f.Support); err != nil {
			return nil, fmt.Errorf("read firings: %w", err)
		}
		firings = append(firings, f)
	}
	return firings, rows.Err()
}

func (s *Store) readConclusions(ctx context.Context, token string) ([]FactRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fact_id, kind, attrs
		FROM conclusions WHERE session_token = ? ORDER BY fact_id
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read conclusions: %w", err)
	}
	defer rows.Close()

	var facts []FactRow
	for rows.Next() {
		var f FactRow
		if err := rows.Scan(&f.FactID, &f.Kind, &f.Attrs); err != nil {
			return nil, fmt.Errorf("read conclusions: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
