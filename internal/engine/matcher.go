package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/croftlab/agrisense/internal/ir"
	"github.com/croftlab/agrisense/internal/rulelib"
	"github.com/croftlab/agrisense/internal/wm"
)

// Activation is a candidate (rule, binding) pair: the rule's conditions
// are currently satisfiable against working memory under this binding.
//
// Support lists the ids of the matched facts, one per non-absent
// condition, in condition order. Activations are transient - recomputed
// after every fact-store mutation.
type Activation struct {
	Rule        *ir.Rule
	Binding     ir.Binding
	BindingHash string
	Support     []int64
}

// refractionKey identifies an activation for once-per-session firing.
// Two activations with the same rule, binding values, and support facts
// are the same piece of reasoning and must not fire twice.
func (a *Activation) refractionKey() string {
	var b strings.Builder
	b.WriteString(a.Rule.Name)
	b.WriteByte(0)
	b.WriteString(a.BindingHash)
	for _, id := range a.Support {
		b.WriteByte(0)
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

// Match computes every activation of every rule against current working
// memory, in library declaration order.
//
// Matching is backtracking unification over each rule's ordered
// condition list: a condition's pattern variables bind against live
// facts of the condition's kind, bindings carry forward to later
// conditions, and every consistent combination is enumerated. The
// result is sound (each activation genuinely satisfies all conditions
// under its binding) and complete (no valid activation is omitted).
func Match(lib *rulelib.Library, store *wm.Store) ([]*Activation, error) {
	var acts []*Activation

	for i := range lib.Rules() {
		rule := &lib.Rules()[i]
		ruleActs, err := matchRule(rule, store)
		if err != nil {
			return nil, fmt.Errorf("match rule %q: %w", rule.Name, err)
		}
		acts = append(acts, ruleActs...)
	}

	return acts, nil
}

// matchRule enumerates all consistent bindings of one rule.
func matchRule(rule *ir.Rule, store *wm.Store) ([]*Activation, error) {
	var acts []*Activation
	var firstErr error

	var recurse func(ci int, binding ir.Binding, support []int64)
	recurse = func(ci int, binding ir.Binding, support []int64) {
		if firstErr != nil {
			return
		}
		if ci == len(rule.Conditions) {
			hash, err := ir.BindingHash(binding)
			if err != nil {
				firstErr = err
				return
			}
			acts = append(acts, &Activation{
				Rule:        rule,
				Binding:     binding.Clone(),
				BindingHash: hash,
				Support:     append([]int64(nil), support...),
			})
			return
		}

		cond := rule.Conditions[ci]

		if cond.Absent {
			// Negation as absence: satisfied when no live fact matches.
			// Variables are all pre-bound (library validation), so the
			// binding passes through unchanged and support gains nothing.
			for range store.Query(cond.Kind, func(f ir.Fact) bool {
				_, ok := matchCondition(cond, f, binding)
				return ok
			}) {
				return // a matching fact exists - condition fails
			}
			recurse(ci+1, binding, support)
			return
		}

		// Facts iterate in assertion order, keeping enumeration
		// deterministic even where the resolver would not care.
		for fact := range store.Query(cond.Kind, nil) {
			extended, ok := matchCondition(cond, fact, binding)
			if !ok {
				continue
			}
			recurse(ci+1, extended, append(support, fact.ID))
		}
	}

	recurse(0, ir.Binding{}, nil)
	return acts, firstErr
}

// matchCondition tests one fact against one condition's constraints
// under the current binding. On success it returns the binding extended
// with any newly bound variables; the input binding is never mutated
// (copy-on-write on first bind).
func matchCondition(cond ir.Condition, fact ir.Fact, binding ir.Binding) (ir.Binding, bool) {
	extended := binding
	cloned := false

	for _, con := range cond.Constraints {
		val, ok := fact.Attrs[con.Attr]
		if !ok {
			return nil, false // missing attribute never matches
		}

		var operand ir.Value
		switch {
		case con.Lit != nil:
			operand = con.Lit
		default:
			bv, bound := extended[con.Var]
			if !bound {
				// Library validation guarantees Op is eq here: bind.
				if !cloned {
					extended = binding.Clone()
					cloned = true
				}
				extended[con.Var] = val
				continue
			}
			operand = bv
		}

		if !ir.EvalCompare(con.Op, val, operand) {
			return nil, false
		}
	}

	return extended, true
}
