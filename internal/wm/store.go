package wm

import (
	"fmt"
	"iter"

	"github.com/croftlab/agrisense/internal/ir"
)

// Store is the working memory for one advisory session.
//
// Facts are immutable once asserted: Assert clones the attribute map it
// is given, and callers must not mutate the Attrs of facts they read
// back. "Updating" a fact is a retract followed by a fresh assert.
type Store struct {
	clock *Clock

	// live facts by id, plus the assertion-ordered id list.
	// order contains dead ids too; liveness is checked on iteration.
	facts map[int64]ir.Fact
	order []int64

	// byKind indexes live+dead ids per kind, in assertion order.
	byKind map[string][]int64

	// byHash maps the content hash of each LIVE fact to its id.
	// Entries are removed on retract so knowledge can be re-asserted.
	byHash map[string]int64
}

// NewStore creates an empty working memory.
func NewStore() *Store {
	return &Store{
		clock:  NewClock(),
		facts:  make(map[int64]ir.Fact),
		byKind: make(map[string][]int64),
		byHash: make(map[string]int64),
	}
}

// Assert adds a new fact and returns its id.
//
// Fails with *DuplicateFactError if an identical (kind, attrs) fact is
// already live; the store is unchanged in that case. Attribute maps are
// cloned, so later mutation of attrs by the caller cannot reach the store.
func (s *Store) Assert(kind string, attrs ir.Attrs) (int64, error) {
	if kind == "" {
		return 0, fmt.Errorf("assert: empty fact kind")
	}

	hash, err := ir.FactHash(kind, attrs)
	if err != nil {
		return 0, fmt.Errorf("assert %q: %w", kind, err)
	}

	if existing, ok := s.byHash[hash]; ok {
		return 0, &DuplicateFactError{Kind: kind, Hash: hash, ExistingID: existing}
	}

	id := s.clock.Next()
	fact := ir.Fact{ID: id, Kind: kind, Attrs: attrs.Clone()}

	s.facts[id] = fact
	s.order = append(s.order, id)
	s.byKind[kind] = append(s.byKind[kind], id)
	s.byHash[hash] = id

	return id, nil
}

// Retract removes a live fact by id.
// Fails with *UnknownFactError if the id is not live. Any activation
// that depended on the fact is invalidated by the next match cycle.
func (s *Store) Retract(id int64) error {
	fact, ok := s.facts[id]
	if !ok {
		return &UnknownFactError{ID: id}
	}

	// FactHash succeeded at assert time, so it cannot fail here.
	hash, err := ir.FactHash(fact.Kind, fact.Attrs)
	if err != nil {
		return fmt.Errorf("retract %d: %w", id, err)
	}

	delete(s.facts, id)
	delete(s.byHash, hash)
	return nil
}

// Get returns the live fact with the given id.
func (s *Store) Get(id int64) (ir.Fact, bool) {
	fact, ok := s.facts[id]
	return fact, ok
}

// Query yields live facts of the given kind satisfying pred, in
// assertion order. A nil pred matches every live fact of the kind.
//
// The sequence is finite and restartable; it reflects the store as of
// iteration time, with no snapshot isolation beyond that.
func (s *Store) Query(kind string, pred func(ir.Fact) bool) iter.Seq[ir.Fact] {
	return func(yield func(ir.Fact) bool) {
		for _, id := range s.byKind[kind] {
			fact, live := s.facts[id]
			if !live {
				continue
			}
			if pred != nil && !pred(fact) {
				continue
			}
			if !yield(fact) {
				return
			}
		}
	}
}

// Live returns all live facts in assertion order.
func (s *Store) Live() []ir.Fact {
	out := make([]ir.Fact, 0, len(s.facts))
	for _, id := range s.order {
		if fact, live := s.facts[id]; live {
			out = append(out, fact)
		}
	}
	return out
}

// Size returns the number of live facts.
func (s *Store) Size() int {
	return len(s.facts)
}

// LastID returns the most recently issued fact id (live or retracted).
func (s *Store) LastID() int64 {
	return s.clock.Current()
}
