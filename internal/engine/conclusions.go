package engine

import (
	"github.com/croftlab/agrisense/internal/ir"
	"github.com/croftlab/agrisense/internal/rulelib"
	"github.com/croftlab/agrisense/internal/wm"
)

// Collect gathers the session result: every live fact whose kind is
// tagged as an output kind in the library schema, in assertion order.
//
// Deduplication by (kind, attrs) is automatic - the fact store forbids
// duplicate assertions. Collect never mutates the store; the returned
// facts are read-only snapshots for the caller.
func Collect(lib *rulelib.Library, store *wm.Store) []ir.Fact {
	var conclusions []ir.Fact
	for _, fact := range store.Live() {
		if lib.IsOutput(fact.Kind) {
			conclusions = append(conclusions, fact)
		}
	}
	return conclusions
}
