package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croftlab/agrisense/internal/ir"
	"github.com/croftlab/agrisense/internal/rulelib"
	"github.com/croftlab/agrisense/internal/wm"
)

func mustLibrary(t *testing.T, rules []ir.Rule, outputs ...string) *rulelib.Library {
	t.Helper()
	if len(outputs) == 0 {
		outputs = []string{"diagnosis", "recommendation", "alert"}
	}
	lib, err := rulelib.New(rules, outputs)
	require.NoError(t, err)
	return lib
}

func mustAssert(t *testing.T, s *wm.Store, kind string, attrs ir.Attrs) int64 {
	t.Helper()
	id, err := s.Assert(kind, attrs)
	require.NoError(t, err)
	return id
}

func TestMatch_LiteralConditions(t *testing.T) {
	lib := mustLibrary(t, []ir.Rule{{
		Name:     "powdery-mildew",
		Priority: 10,
		Conditions: []ir.Condition{
			{Kind: "symptom", Constraints: []ir.Constraint{
				{Attr: "leaf_spots", Op: ir.OpEq, Lit: ir.Bool(true)},
				{Attr: "powdery_white", Op: ir.OpEq, Lit: ir.Bool(true)},
			}},
		},
		Actions: []ir.Action{{Op: ir.ActAssert, Kind: "diagnosis", Attrs: map[string]ir.Term{
			"disease": {Lit: ir.String("powdery-mildew")},
		}}},
	}})

	store := wm.NewStore()
	id := mustAssert(t, store, "symptom", ir.Attrs{
		"leaf_spots":    ir.Bool(true),
		"powdery_white": ir.Bool(true),
	})

	acts, err := Match(lib, store)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "powdery-mildew", acts[0].Rule.Name)
	assert.Equal(t, []int64{id}, acts[0].Support)
	assert.Empty(t, acts[0].Binding)
}

func TestMatch_MissingAttributeNeverMatches(t *testing.T) {
	lib := mustLibrary(t, []ir.Rule{{
		Name:     "r",
		Priority: 1,
		Conditions: []ir.Condition{
			{Kind: "soil", Constraints: []ir.Constraint{
				{Attr: "ph", Op: ir.OpLt, Lit: ir.Float(6.0)},
			}},
		},
		Actions: []ir.Action{{Op: ir.ActAssert, Kind: "diagnosis", Attrs: map[string]ir.Term{
			"disease": {Lit: ir.String("x")},
		}}},
	}})

	store := wm.NewStore()
	mustAssert(t, store, "soil", ir.Attrs{"moisture": ir.String("low")}) // no ph attr

	acts, err := Match(lib, store)
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestMatch_VariableJoinAcrossConditions(t *testing.T) {
	// $crop binds in the first condition and constrains the second:
	// only same-crop (symptom, stage) pairs activate.
	lib := mustLibrary(t, []ir.Rule{{
		Name:     "stage-symptom",
		Priority: 5,
		Conditions: []ir.Condition{
			{Kind: "symptom", Constraints: []ir.Constraint{
				{Attr: "crop", Op: ir.OpEq, Var: "crop"},
			}},
			{Kind: "crop", Constraints: []ir.Constraint{
				{Attr: "name", Op: ir.OpEq, Var: "crop"},
				{Attr: "stage", Op: ir.OpEq, Var: "stage"},
			}},
		},
		Actions: []ir.Action{{Op: ir.ActAssert, Kind: "recommendation", Attrs: map[string]ir.Term{
			"crop":  {Var: "crop"},
			"stage": {Var: "stage"},
		}}},
	}})

	store := wm.NewStore()
	symTomato := mustAssert(t, store, "symptom", ir.Attrs{"crop": ir.String("tomato")})
	mustAssert(t, store, "symptom", ir.Attrs{"crop": ir.String("maize")})
	cropTomato := mustAssert(t, store, "crop", ir.Attrs{
		"name": ir.String("tomato"), "stage": ir.String("flowering"),
	})

	acts, err := Match(lib, store)
	require.NoError(t, err)
	require.Len(t, acts, 1, "maize symptom has no matching crop fact")

	act := acts[0]
	assert.Equal(t, ir.String("tomato"), act.Binding["crop"])
	assert.Equal(t, ir.String("flowering"), act.Binding["stage"])
	assert.Equal(t, []int64{symTomato, cropTomato}, act.Support)
}

func TestMatch_EnumeratesAllCombinations(t *testing.T) {
	// Completeness: every consistent (pest) binding is an activation.
	lib := mustLibrary(t, []ir.Rule{{
		Name:     "pest-alert",
		Priority: 1,
		Conditions: []ir.Condition{
			{Kind: "pest", Constraints: []ir.Constraint{
				{Attr: "name", Op: ir.OpEq, Var: "pest"},
				{Attr: "present", Op: ir.OpEq, Lit: ir.Bool(true)},
			}},
		},
		Actions: []ir.Action{{Op: ir.ActAssert, Kind: "alert", Attrs: map[string]ir.Term{
			"pest": {Var: "pest"},
		}}},
	}})

	store := wm.NewStore()
	mustAssert(t, store, "pest", ir.Attrs{"name": ir.String("aphids"), "present": ir.Bool(true)})
	mustAssert(t, store, "pest", ir.Attrs{"name": ir.String("whiteflies"), "present": ir.Bool(true)})
	mustAssert(t, store, "pest", ir.Attrs{"name": ir.String("mites"), "present": ir.Bool(false)})

	acts, err := Match(lib, store)
	require.NoError(t, err)
	require.Len(t, acts, 2)

	// Assertion order preserved
	assert.Equal(t, ir.String("aphids"), acts[0].Binding["pest"])
	assert.Equal(t, ir.String("whiteflies"), acts[1].Binding["pest"])
}

func TestMatch_OrderedComparisonAgainstBoundVariable(t *testing.T) {
	lib := mustLibrary(t, []ir.Rule{{
		Name:     "n-dropped",
		Priority: 1,
		Conditions: []ir.Condition{
			{Kind: "lab", Constraints: []ir.Constraint{
				{Attr: "n", Op: ir.OpEq, Var: "baseline"},
				{Attr: "sample", Op: ir.OpEq, Lit: ir.String("before")},
			}},
			{Kind: "lab", Constraints: []ir.Constraint{
				{Attr: "sample", Op: ir.OpEq, Lit: ir.String("after")},
				{Attr: "n", Op: ir.OpLt, Var: "baseline"},
			}},
		},
		Actions: []ir.Action{{Op: ir.ActAssert, Kind: "alert", Attrs: map[string]ir.Term{
			"note": {Lit: ir.String("nitrogen declining")},
		}}},
	}})

	store := wm.NewStore()
	mustAssert(t, store, "lab", ir.Attrs{"sample": ir.String("before"), "n": ir.Int(80)})
	mustAssert(t, store, "lab", ir.Attrs{"sample": ir.String("after"), "n": ir.Int(40)})

	acts, err := Match(lib, store)
	require.NoError(t, err)
	assert.Len(t, acts, 1)

	// Reverse: after >= before, no activation
	store2 := wm.NewStore()
	mustAssert(t, store2, "lab", ir.Attrs{"sample": ir.String("before"), "n": ir.Int(40)})
	mustAssert(t, store2, "lab", ir.Attrs{"sample": ir.String("after"), "n": ir.Int(80)})

	acts, err = Match(lib, store2)
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestMatch_AbsentCondition(t *testing.T) {
	lib := mustLibrary(t, []ir.Rule{{
		Name:     "insufficient-data",
		Priority: -10,
		Conditions: []ir.Condition{
			{Kind: "diagnosis", Absent: true},
			{Kind: "recommendation", Absent: true},
		},
		Actions: []ir.Action{{Op: ir.ActAssert, Kind: "recommendation", Attrs: map[string]ir.Term{
			"general": {Lit: ir.String("collect more data")},
		}}},
	}})

	store := wm.NewStore()
	acts, err := Match(lib, store)
	require.NoError(t, err)
	require.Len(t, acts, 1, "empty store satisfies both absences")
	assert.Empty(t, acts[0].Support)

	mustAssert(t, store, "diagnosis", ir.Attrs{"disease": ir.String("blight")})
	acts, err = Match(lib, store)
	require.NoError(t, err)
	assert.Empty(t, acts, "a live diagnosis defeats the absence")
}

func TestMatch_BindingIsolationAcrossBranches(t *testing.T) {
	// Two facts bind $x differently; each branch must keep its own value.
	lib := mustLibrary(t, []ir.Rule{{
		Name:     "pair",
		Priority: 1,
		Conditions: []ir.Condition{
			{Kind: "a", Constraints: []ir.Constraint{{Attr: "x", Op: ir.OpEq, Var: "x"}}},
			{Kind: "b", Constraints: []ir.Constraint{{Attr: "x", Op: ir.OpEq, Var: "x"}}},
		},
		Actions: []ir.Action{{Op: ir.ActAssert, Kind: "alert", Attrs: map[string]ir.Term{
			"x": {Var: "x"},
		}}},
	}})

	store := wm.NewStore()
	mustAssert(t, store, "a", ir.Attrs{"x": ir.Int(1)})
	mustAssert(t, store, "a", ir.Attrs{"x": ir.Int(2)})
	mustAssert(t, store, "b", ir.Attrs{"x": ir.Int(1)})
	mustAssert(t, store, "b", ir.Attrs{"x": ir.Int(2)})

	acts, err := Match(lib, store)
	require.NoError(t, err)
	require.Len(t, acts, 2, "only consistent x pairings activate")

	for _, act := range acts {
		assert.Len(t, act.Support, 2)
	}
}
