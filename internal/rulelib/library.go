// Package rulelib holds the immutable, ordered rule library.
//
// A Library is loaded once and shared read-only across concurrent
// sessions; no session may write to it. All content validation happens
// in New - a Library that constructed successfully is structurally sound,
// and the engine never re-validates rules at match time.
package rulelib

import (
	"fmt"
	"slices"

	"github.com/croftlab/agrisense/internal/ir"
)

// LibraryError reports a malformed or contradictory rule definition.
// Load-time and fatal: construction aborts entirely, nothing is
// partially loaded.
type LibraryError struct {
	Rule    string // offending rule name, empty for library-level errors
	Field   string // offending field, e.g. "conditions", "actions[1].attrs.crop"
	Message string
}

func (e *LibraryError) Error() string {
	if e.Rule != "" && e.Field != "" {
		return fmt.Sprintf("rule library: rule %q: %s: %s", e.Rule, e.Field, e.Message)
	}
	if e.Rule != "" {
		return fmt.Sprintf("rule library: rule %q: %s", e.Rule, e.Message)
	}
	return fmt.Sprintf("rule library: %s", e.Message)
}

// Library is an immutable ordered collection of rules plus the schema of
// output kinds (the fact kinds surfaced as conclusions).
type Library struct {
	rules   []ir.Rule
	byName  map[string]int
	outputs map[string]bool
}

// New validates rule definitions and builds a Library.
//
// The rules slice order is preserved - it is the declaration order used
// as the library's iteration order. The slice is copied to prevent
// external mutation.
//
// Validation per rule:
//   - name non-empty and unique within the library
//   - at least one condition and one action
//   - constraints use known operators and exactly one of literal/variable
//   - ordered operators (lt/le/gt/ge) on variables require the variable
//     to be bound by an earlier constraint or condition
//   - absent conditions bind nothing; their variables must already be bound
//   - every variable referenced by an action is bound by some condition
//
// outputKinds must name at least one kind. Any violation returns a
// *LibraryError and no Library.
func New(rules []ir.Rule, outputKinds []string) (*Library, error) {
	if len(outputKinds) == 0 {
		return nil, &LibraryError{Field: "output", Message: "at least one output kind is required"}
	}

	outputs := make(map[string]bool, len(outputKinds))
	for _, kind := range outputKinds {
		if kind == "" {
			return nil, &LibraryError{Field: "output", Message: "empty output kind"}
		}
		outputs[kind] = true
	}

	byName := make(map[string]int, len(rules))
	for i, rule := range rules {
		if rule.Name == "" {
			return nil, &LibraryError{Field: "name", Message: fmt.Sprintf("rule at index %d has no name", i)}
		}
		if _, dup := byName[rule.Name]; dup {
			return nil, &LibraryError{Rule: rule.Name, Field: "name", Message: "duplicate rule name"}
		}
		byName[rule.Name] = i

		if err := validateRule(rule); err != nil {
			return nil, err
		}
	}

	rulesCopy := make([]ir.Rule, len(rules))
	copy(rulesCopy, rules)

	return &Library{
		rules:   rulesCopy,
		byName:  byName,
		outputs: outputs,
	}, nil
}

// validateRule checks one rule's structure and variable discipline.
func validateRule(rule ir.Rule) error {
	if len(rule.Conditions) == 0 {
		return &LibraryError{Rule: rule.Name, Field: "conditions", Message: "at least one condition is required"}
	}
	if len(rule.Actions) == 0 {
		return &LibraryError{Rule: rule.Name, Field: "actions", Message: "at least one action is required"}
	}

	// Simulate binding accumulation in declaration order.
	bound := make(map[string]bool)

	for ci, cond := range rule.Conditions {
		if cond.Kind == "" {
			return &LibraryError{
				Rule:    rule.Name,
				Field:   fmt.Sprintf("conditions[%d].kind", ci),
				Message: "empty fact kind",
			}
		}

		for xi, con := range cond.Constraints {
			field := fmt.Sprintf("conditions[%d].constraints[%d]", ci, xi)

			if con.Attr == "" {
				return &LibraryError{Rule: rule.Name, Field: field, Message: "empty attribute name"}
			}
			if !ir.ValidCompareOps[con.Op] {
				return &LibraryError{Rule: rule.Name, Field: field, Message: fmt.Sprintf("invalid operator %q", con.Op)}
			}
			if (con.Lit == nil) == (con.Var == "") {
				return &LibraryError{Rule: rule.Name, Field: field, Message: "exactly one of literal and variable must be set"}
			}

			if con.Var == "" {
				continue
			}

			if cond.Absent {
				// Absent conditions cannot bind: no fact exists to bind from.
				if !bound[con.Var] {
					return &LibraryError{
						Rule:    rule.Name,
						Field:   field,
						Message: fmt.Sprintf("variable $%s in absent condition is not bound by an earlier condition", con.Var),
					}
				}
				continue
			}

			if con.Op == ir.OpEq {
				bound[con.Var] = true
				continue
			}
			if !bound[con.Var] {
				return &LibraryError{
					Rule:    rule.Name,
					Field:   field,
					Message: fmt.Sprintf("ordered operator %q on unbound variable $%s", con.Op, con.Var),
				}
			}
		}
	}

	for ai, act := range rule.Actions {
		field := fmt.Sprintf("actions[%d]", ai)

		if act.Op != ir.ActAssert && act.Op != ir.ActRetract {
			return &LibraryError{Rule: rule.Name, Field: field, Message: fmt.Sprintf("invalid action op %q", act.Op)}
		}
		if act.Kind == "" {
			return &LibraryError{Rule: rule.Name, Field: field, Message: "empty fact kind"}
		}
		if act.Op == ir.ActAssert && len(act.Attrs) == 0 {
			return &LibraryError{Rule: rule.Name, Field: field, Message: "assert action requires at least one attribute"}
		}

		for attr, term := range act.Attrs {
			if (term.Lit == nil) == (term.Var == "") {
				return &LibraryError{
					Rule:    rule.Name,
					Field:   fmt.Sprintf("%s.attrs.%s", field, attr),
					Message: "exactly one of literal and variable must be set",
				}
			}
			if term.Var != "" && !bound[term.Var] {
				return &LibraryError{
					Rule:    rule.Name,
					Field:   fmt.Sprintf("%s.attrs.%s", field, attr),
					Message: fmt.Sprintf("variable $%s is not bound by any condition", term.Var),
				}
			}
		}
	}

	return nil
}

// Rules returns the rules in declaration order.
// The returned slice is read-only; callers must not mutate it.
func (l *Library) Rules() []ir.Rule {
	return l.rules
}

// Get returns the rule with the given name.
func (l *Library) Get(name string) (ir.Rule, bool) {
	i, ok := l.byName[name]
	if !ok {
		return ir.Rule{}, false
	}
	return l.rules[i], true
}

// Len returns the number of rules.
func (l *Library) Len() int {
	return len(l.rules)
}

// IsOutput reports whether a fact kind is tagged as an output kind.
func (l *Library) IsOutput(kind string) bool {
	return l.outputs[kind]
}

// OutputKinds returns the declared output kinds, sorted for determinism.
func (l *Library) OutputKinds() []string {
	kinds := make([]string, 0, len(l.outputs))
	for k := range l.outputs {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
