package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croftlab/agrisense/internal/ir"
)

func compileRuleSrc(t *testing.T, name, src string) (*ir.Rule, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileRule(v.LookupPath(cue.ParsePath(`rules."` + name + `"`)))
}

func TestCompileRule_Full(t *testing.T) {
	rule, err := compileRuleSrc(t, "nitrogen-deficiency", `
rules: "nitrogen-deficiency": {
	priority: 10
	when: [
		{kind: "symptom", where: {leaf_yellowing: true}},
		{kind: "soil", where: {ph: {lt: 6.0}}},
	]
	then: [
		{assert: "diagnosis", attrs: {condition: "nitrogen-deficiency"}},
	]
}
`)
	require.NoError(t, err)

	assert.Equal(t, "nitrogen-deficiency", rule.Name)
	assert.Equal(t, 10, rule.Priority)

	require.Len(t, rule.Conditions, 2)
	c0 := rule.Conditions[0]
	assert.Equal(t, "symptom", c0.Kind)
	require.Len(t, c0.Constraints, 1)
	assert.Equal(t, ir.Constraint{Attr: "leaf_yellowing", Op: ir.OpEq, Lit: ir.Bool(true)}, c0.Constraints[0])

	c1 := rule.Conditions[1]
	assert.Equal(t, "soil", c1.Kind)
	require.Len(t, c1.Constraints, 1)
	assert.Equal(t, ir.Constraint{Attr: "ph", Op: ir.OpLt, Lit: ir.Float(6.0)}, c1.Constraints[0])

	require.Len(t, rule.Actions, 1)
	a := rule.Actions[0]
	assert.Equal(t, ir.ActAssert, a.Op)
	assert.Equal(t, "diagnosis", a.Kind)
	assert.Equal(t, ir.Term{Lit: ir.String("nitrogen-deficiency")}, a.Attrs["condition"])
}

func TestCompileRule_PriorityDefaultsToZero(t *testing.T) {
	rule, err := compileRuleSrc(t, "r", `
rules: "r": {
	when: [{kind: "soil"}]
	then: [{assert: "alert"}]
}
`)
	require.NoError(t, err)
	assert.Equal(t, 0, rule.Priority)
	assert.Empty(t, rule.Conditions[0].Constraints)
	assert.Empty(t, rule.Actions[0].Attrs)
}

func TestCompileRule_Variables(t *testing.T) {
	rule, err := compileRuleSrc(t, "pest-alert", `
rules: "pest-alert": {
	priority: 5
	when: [
		{kind: "pest", where: {name: "$pest", present: true}},
	]
	then: [
		{assert: "alert", attrs: {pest: "$pest", note: "treat soon"}},
	]
}
`)
	require.NoError(t, err)

	var nameCons ir.Constraint
	for _, c := range rule.Conditions[0].Constraints {
		if c.Attr == "name" {
			nameCons = c
		}
	}
	assert.Equal(t, ir.Constraint{Attr: "name", Op: ir.OpEq, Var: "pest"}, nameCons)

	assert.Equal(t, ir.Term{Var: "pest"}, rule.Actions[0].Attrs["pest"])
	assert.Equal(t, ir.Term{Lit: ir.String("treat soon")}, rule.Actions[0].Attrs["note"])
}

func TestCompileRule_VariableComparisonOperand(t *testing.T) {
	rule, err := compileRuleSrc(t, "declining", `
rules: "declining": {
	when: [
		{kind: "lab", where: {sample: "before", n: "$baseline"}},
		{kind: "lab", where: {sample: "after", n: {lt: "$baseline"}}},
	]
	then: [{assert: "alert", attrs: {note: "declining"}}]
}
`)
	require.NoError(t, err)

	var after ir.Constraint
	for _, c := range rule.Conditions[1].Constraints {
		if c.Attr == "n" {
			after = c
		}
	}
	assert.Equal(t, ir.Constraint{Attr: "n", Op: ir.OpLt, Var: "baseline"}, after)
}

func TestCompileRule_AbsentCondition(t *testing.T) {
	rule, err := compileRuleSrc(t, "fallback", `
rules: "fallback": {
	priority: -10
	when: [
		{kind: "diagnosis", absent: true},
	]
	then: [{assert: "recommendation", attrs: {general: "collect more data"}}]
}
`)
	require.NoError(t, err)
	assert.True(t, rule.Conditions[0].Absent)
	assert.Equal(t, -10, rule.Priority)
}

func TestCompileRule_RetractAction(t *testing.T) {
	rule, err := compileRuleSrc(t, "cleanup", `
rules: "cleanup": {
	when: [{kind: "reading", where: {stale: true}}]
	then: [{retract: "reading", attrs: {stale: true}}]
}
`)
	require.NoError(t, err)
	assert.Equal(t, ir.ActRetract, rule.Actions[0].Op)
	assert.Equal(t, "reading", rule.Actions[0].Kind)
}

func TestCompileRule_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing when",
			src:  `rules: "r": {then: [{assert: "alert"}]}`,
			want: "when clause is required",
		},
		{
			name: "missing then",
			src:  `rules: "r": {when: [{kind: "soil"}]}`,
			want: "then clause is required",
		},
		{
			name: "condition without kind",
			src:  `rules: "r": {when: [{where: {ph: 7}}], then: [{assert: "alert"}]}`,
			want: "condition requires 'kind' field",
		},
		{
			name: "unknown operator",
			src:  `rules: "r": {when: [{kind: "soil", where: {ph: {below: 6.0}}}], then: [{assert: "alert"}]}`,
			want: "unknown operator",
		},
		{
			name: "two operators in one comparison",
			src:  `rules: "r": {when: [{kind: "soil", where: {ph: {gt: 5.0, lt: 6.0}}}], then: [{assert: "alert"}]}`,
			want: "exactly one operator",
		},
		{
			name: "bare dollar variable",
			src:  `rules: "r": {when: [{kind: "soil", where: {ph: "$"}}], then: [{assert: "alert"}]}`,
			want: "not a valid variable reference",
		},
		{
			name: "action without verb",
			src:  `rules: "r": {when: [{kind: "soil"}], then: [{attrs: {x: 1}}]}`,
			want: "requires 'assert' or 'retract'",
		},
		{
			name: "action with both verbs",
			src:  `rules: "r": {when: [{kind: "soil"}], then: [{assert: "a", retract: "b"}]}`,
			want: "cannot be both",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compileRuleSrc(t, "r", tc.src)
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Message, tc.want)
		})
	}
}

func TestCompileError_FormatsPosition(t *testing.T) {
	err := &CompileError{Field: "when", Message: "when clause is required"}
	assert.Equal(t, "when: when clause is required", err.Error())
}
