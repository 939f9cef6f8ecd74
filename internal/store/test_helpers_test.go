package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/croftlab/agrisense/internal/ir"
	"github.com/croftlab/agrisense/internal/rulelib"
)

// acidSoilLibrary builds a one-rule library: acidic soil concludes an
// acidic-soil diagnosis.
func acidSoilLibrary(t *testing.T) *rulelib.Library {
	t.Helper()

	lib, err := rulelib.New([]ir.Rule{{
		Name:     "acidic-soil",
		Priority: 10,
		Conditions: []ir.Condition{
			{Kind: "soil", Constraints: []ir.Constraint{
				{Attr: "ph", Op: ir.OpLt, Lit: ir.Float(5.5)},
			}},
		},
		Actions: []ir.Action{{Op: ir.ActAssert, Kind: "diagnosis", Attrs: map[string]ir.Term{
			"condition": {Lit: ir.String("acidic-soil")},
		}}},
	}}, []string{"diagnosis"})
	require.NoError(t, err)
	return lib
}
