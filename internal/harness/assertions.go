package harness

import (
	"fmt"
	"strings"

	"github.com/croftlab/agrisense/internal/ir"
)

// evaluate checks one assertion against a scenario result.
func evaluate(a *Assertion, r *Result) error {
	switch a.Type {
	case AssertConclusionContains:
		return assertConclusionContains(a, r)
	case AssertConclusionCount:
		return assertConclusionCount(a, r)
	case AssertFiringOrder:
		return assertFiringOrder(a, r)
	case AssertFiringCount:
		return assertFiringCount(a, r)
	case AssertQuiescentCycles:
		return assertQuiescentCycles(a, r)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertConclusionContains checks that some conclusion of the given
// kind carries every expected attribute (subset match).
func assertConclusionContains(a *Assertion, r *Result) error {
	want, err := ir.AttrsFromAny(a.Attrs)
	if err != nil {
		return fmt.Errorf("bad expected attrs: %w", err)
	}

	for _, fact := range r.Conclusions {
		if fact.Kind != a.Kind {
			continue
		}
		if attrsMatch(want, fact.Attrs) {
			return nil
		}
	}

	return fmt.Errorf("no %s conclusion matching %s (got %s)",
		a.Kind, want.String(), summarizeConclusions(r.Conclusions))
}

// assertConclusionCount checks the total number of conclusions,
// optionally restricted to one kind.
func assertConclusionCount(a *Assertion, r *Result) error {
	count := 0
	for _, fact := range r.Conclusions {
		if a.Kind == "" || fact.Kind == a.Kind {
			count++
		}
	}

	if count != a.Count {
		label := "conclusions"
		if a.Kind != "" {
			label = a.Kind + " conclusions"
		}
		return fmt.Errorf("expected %d %s, got %d", a.Count, label, count)
	}
	return nil
}

// assertFiringOrder checks that the named rules appear in the firing
// log in the given relative order. Other firings may interleave.
func assertFiringOrder(a *Assertion, r *Result) error {
	next := 0
	for _, firing := range r.Firings {
		if next < len(a.Rules) && firing.Rule == a.Rules[next] {
			next++
		}
	}

	if next != len(a.Rules) {
		return fmt.Errorf("rule %q did not fire in expected order (log: %s)",
			a.Rules[next], summarizeFirings(r))
	}
	return nil
}

// assertFiringCount checks that one rule fired exactly Count times.
func assertFiringCount(a *Assertion, r *Result) error {
	count := 0
	for _, firing := range r.Firings {
		if firing.Rule == a.Rule {
			count++
		}
	}

	if count != a.Count {
		return fmt.Errorf("expected rule %q to fire %d times, fired %d", a.Rule, a.Count, count)
	}
	return nil
}

// assertQuiescentCycles checks the exact number of firings before
// quiescence.
func assertQuiescentCycles(a *Assertion, r *Result) error {
	if r.CycleLimitHit {
		return fmt.Errorf("session hit the cycle ceiling, never quiesced")
	}
	if r.Cycles != a.Count {
		return fmt.Errorf("expected quiescence after %d cycles, took %d", a.Count, r.Cycles)
	}
	return nil
}

// attrsMatch reports whether every expected attribute equals the
// corresponding actual attribute.
func attrsMatch(want, got ir.Attrs) bool {
	for k, v := range want {
		gv, ok := got[k]
		if !ok || !ir.Equal(v, gv) {
			return false
		}
	}
	return true
}

func summarizeConclusions(facts []ir.Fact) string {
	if len(facts) == 0 {
		return "none"
	}
	parts := make([]string, len(facts))
	for i, fact := range facts {
		parts[i] = fact.Kind + fact.Attrs.String()
	}
	return strings.Join(parts, ", ")
}

func summarizeFirings(r *Result) string {
	if len(r.Firings) == 0 {
		return "empty"
	}
	parts := make([]string, len(r.Firings))
	for i, firing := range r.Firings {
		parts[i] = firing.Rule
	}
	return strings.Join(parts, " -> ")
}
