package engine

import (
	"cmp"
	"slices"
)

// Conflict resolution: when multiple activations are eligible in the
// same cycle, exactly one fires, selected by a strictly total order:
//
//  1. Higher rule priority wins.
//  2. Among equal priority, the activation whose most-recently-bound
//     support fact has the smallest id wins - a first-observation-first
//     bias that keeps the newest noisy facts from dominating.
//  3. Remaining ties compare the full support id tuples (newest first),
//     then rule name ascending, then binding hash ascending. The last
//     two levels exist purely so resolution never depends on map or
//     slice enumeration order.

// Select picks the activation to fire from a non-empty candidate set.
func Select(acts []*Activation) *Activation {
	best := acts[0]
	for _, act := range acts[1:] {
		if beats(act, best) {
			best = act
		}
	}
	return best
}

// beats reports whether a precedes b in the firing order.
func beats(a, b *Activation) bool {
	if a.Rule.Priority != b.Rule.Priority {
		return a.Rule.Priority > b.Rule.Priority
	}

	ar, br := newestSupport(a), newestSupport(b)
	if ar != br {
		return ar < br
	}

	if c := compareSupportDesc(a.Support, b.Support); c != 0 {
		return c < 0
	}

	if a.Rule.Name != b.Rule.Name {
		return a.Rule.Name < b.Rule.Name
	}

	return a.BindingHash < b.BindingHash
}

// newestSupport returns the largest fact id an activation depends on.
// Activations built purely from absent conditions depend on no facts
// and report 0, ordering them ahead of fact-backed peers at the same
// priority.
func newestSupport(a *Activation) int64 {
	var newest int64
	for _, id := range a.Support {
		if id > newest {
			newest = id
		}
	}
	return newest
}

// compareSupportDesc compares two support sets as descending id tuples.
func compareSupportDesc(a, b []int64) int {
	as, bs := sortedDesc(a), sortedDesc(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			if as[i] < bs[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

func sortedDesc(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	slices.SortFunc(out, func(x, y int64) int { return cmp.Compare(y, x) })
	return out
}
