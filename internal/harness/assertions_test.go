package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croftlab/agrisense/internal/engine"
	"github.com/croftlab/agrisense/internal/ir"
)

func sampleResult() *Result {
	return &Result{
		Pass: true,
		Conclusions: []ir.Fact{
			{ID: 3, Kind: "diagnosis", Attrs: ir.Attrs{"condition": ir.String("acidic-soil")}},
			{ID: 4, Kind: "recommendation", Attrs: ir.Attrs{"treatment": ir.String("apply lime")}},
		},
		Firings: []engine.FiringRecord{
			{Cycle: 1, Rule: "acidic-soil"},
			{Cycle: 2, Rule: "lime-advice"},
		},
		Cycles: 2,
	}
}

func TestEvaluate_ConclusionContains(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(&Assertion{
		Type:  AssertConclusionContains,
		Kind:  "diagnosis",
		Attrs: map[string]any{"condition": "acidic-soil"},
	}, r))

	err := evaluate(&Assertion{
		Type:  AssertConclusionContains,
		Kind:  "diagnosis",
		Attrs: map[string]any{"condition": "late-blight"},
	}, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no diagnosis conclusion")
}

func TestEvaluate_ConclusionContains_SubsetMatch(t *testing.T) {
	r := &Result{
		Conclusions: []ir.Fact{{
			ID:   1,
			Kind: "alert",
			Attrs: ir.Attrs{
				"pest": ir.String("aphids"),
				"note": ir.String("treat promptly"),
			},
		}},
	}

	// Only the specified attribute must match.
	assert.NoError(t, evaluate(&Assertion{
		Type:  AssertConclusionContains,
		Kind:  "alert",
		Attrs: map[string]any{"pest": "aphids"},
	}, r))
}

func TestEvaluate_ConclusionContains_NumericPromotion(t *testing.T) {
	r := &Result{
		Conclusions: []ir.Fact{{
			ID:    1,
			Kind:  "alert",
			Attrs: ir.Attrs{"threshold": ir.Float(50)},
		}},
	}

	// YAML int 50 matches the engine's Float(50).
	assert.NoError(t, evaluate(&Assertion{
		Type:  AssertConclusionContains,
		Kind:  "alert",
		Attrs: map[string]any{"threshold": 50},
	}, r))
}

func TestEvaluate_ConclusionCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(&Assertion{Type: AssertConclusionCount, Count: 2}, r))
	assert.NoError(t, evaluate(&Assertion{Type: AssertConclusionCount, Kind: "diagnosis", Count: 1}, r))

	err := evaluate(&Assertion{Type: AssertConclusionCount, Count: 3}, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 3 conclusions, got 2")
}

func TestEvaluate_FiringOrder(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(&Assertion{
		Type:  AssertFiringOrder,
		Rules: []string{"acidic-soil", "lime-advice"},
	}, r))

	// Relative order: a subsequence is enough.
	assert.NoError(t, evaluate(&Assertion{
		Type:  AssertFiringOrder,
		Rules: []string{"lime-advice"},
	}, r))

	err := evaluate(&Assertion{
		Type:  AssertFiringOrder,
		Rules: []string{"lime-advice", "acidic-soil"},
	}, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not fire in expected order")
}

func TestEvaluate_FiringCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(&Assertion{Type: AssertFiringCount, Rule: "acidic-soil", Count: 1}, r))
	assert.NoError(t, evaluate(&Assertion{Type: AssertFiringCount, Rule: "never-fired", Count: 0}, r))

	err := evaluate(&Assertion{Type: AssertFiringCount, Rule: "acidic-soil", Count: 2}, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fired 1")
}

func TestEvaluate_QuiescentCycles(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(&Assertion{Type: AssertQuiescentCycles, Count: 2}, r))

	err := evaluate(&Assertion{Type: AssertQuiescentCycles, Count: 1}, r)
	require.Error(t, err)

	r.CycleLimitHit = true
	err = evaluate(&Assertion{Type: AssertQuiescentCycles, Count: 2}, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never quiesced")
}
