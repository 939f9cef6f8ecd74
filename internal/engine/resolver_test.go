package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/croftlab/agrisense/internal/ir"
)

func act(name string, priority int, support ...int64) *Activation {
	return &Activation{
		Rule:    &ir.Rule{Name: name, Priority: priority},
		Binding: ir.Binding{},
		Support: support,
	}
}

func TestSelect_HigherPriorityWins(t *testing.T) {
	low := act("low", 1, 1)
	high := act("high", 50, 99)

	assert.Same(t, high, Select([]*Activation{low, high}))
	assert.Same(t, high, Select([]*Activation{high, low}))
}

func TestSelect_EqualPriority_SmallestNewestSupportWins(t *testing.T) {
	// The activation whose most-recently-bound fact is oldest fires first.
	early := act("early", 5, 1, 2)
	late := act("late", 5, 1, 7)

	assert.Same(t, early, Select([]*Activation{late, early}))
	assert.Same(t, early, Select([]*Activation{early, late}))
}

func TestSelect_AbsentOnlyActivationPrecedesFactBacked(t *testing.T) {
	unsupported := act("fallback", 5)
	supported := act("backed", 5, 3)

	assert.Same(t, unsupported, Select([]*Activation{supported, unsupported}))
}

func TestSelect_SupportTupleBreaksNewestTie(t *testing.T) {
	// Same newest id (4); the second-newest decides.
	a := act("a", 5, 1, 4)
	b := act("b", 5, 2, 4)

	assert.Same(t, a, Select([]*Activation{b, a}))
}

func TestSelect_RuleNameBreaksSupportTie(t *testing.T) {
	first := act("apply-fungicide", 5, 3)
	second := act("apply-neem", 5, 3)

	assert.Same(t, first, Select([]*Activation{second, first}))
	assert.Same(t, first, Select([]*Activation{first, second}))
}

func TestSelect_BindingHashBreaksFinalTie(t *testing.T) {
	a := act("same", 5, 3)
	a.BindingHash = "aaa"
	b := act("same", 5, 3)
	b.BindingHash = "bbb"

	assert.Same(t, a, Select([]*Activation{b, a}))
}

func TestSelect_OrderIndependent(t *testing.T) {
	// The same winner regardless of candidate enumeration order.
	acts := []*Activation{
		act("r1", 5, 2),
		act("r2", 10, 9),
		act("r3", 10, 4),
		act("r4", -3, 1),
	}

	want := Select(acts)
	reversed := []*Activation{acts[3], acts[2], acts[1], acts[0]}
	assert.Same(t, want, Select(reversed))
	assert.Equal(t, "r3", want.Rule.Name)
}
