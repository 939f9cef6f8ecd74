// Package compiler translates CUE rule definitions into the engine's
// rule IR. It uses the CUE SDK's Go API directly (not CLI subprocess),
// so compile errors carry source positions.
package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/croftlab/agrisense/internal/ir"
)

// CompileRule parses a CUE value into a Rule.
//
// The CUE value should be the rule struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rules: "blight-warning": { ... }`)
//	rule, err := CompileRule(v.LookupPath(cue.ParsePath(`rules."blight-warning"`)))
//
// Rule shape:
//
//	{
//	  priority: 10                                  // optional, default 0
//	  when: [
//	    {kind: "symptom", where: {leaf_spots: true}},
//	    {kind: "soil",    where: {ph: {lt: 6.0}}},
//	    {kind: "diagnosis", absent: true},
//	  ]
//	  then: [
//	    {assert: "diagnosis", attrs: {condition: "blight"}},
//	  ]
//	}
//
// String values beginning with "$" are variable references.
func CompileRule(v cue.Value) (*ir.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rule := &ir.Rule{}

	// Rule name comes from the struct label,
	// e.g. `rules: "blight-warning": { ... }` names the rule "blight-warning".
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		rule.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	prioVal := v.LookupPath(cue.ParsePath("priority"))
	if prioVal.Exists() {
		p, err := prioVal.Int64()
		if err != nil {
			return nil, &CompileError{
				Field:   "priority",
				Message: "priority must be an integer",
				Pos:     prioVal.Pos(),
			}
		}
		rule.Priority = int(p)
	}

	var err error
	rule.Conditions, err = parseWhen(v)
	if err != nil {
		return nil, err
	}

	rule.Actions, err = parseThen(v)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// parseWhen extracts the condition list from a rule.
func parseWhen(v cue.Value) ([]ir.Condition, error) {
	whenVal := v.LookupPath(cue.ParsePath("when"))
	if !whenVal.Exists() {
		return nil, &CompileError{
			Field:   "when",
			Message: "when clause is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := whenVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "when",
			Message: "when must be a list of conditions",
			Pos:     whenVal.Pos(),
		}
	}

	var conds []ir.Condition
	for i := 0; iter.Next(); i++ {
		cond, err := parseCondition(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

// parseCondition extracts one condition: a fact kind, an optional
// absence marker, and an optional where block of attribute constraints.
func parseCondition(v cue.Value, idx int) (ir.Condition, error) {
	cond := ir.Condition{}
	field := fmt.Sprintf("when[%d]", idx)

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return cond, &CompileError{
			Field:   field + ".kind",
			Message: "condition requires 'kind' field",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return cond, &CompileError{
			Field:   field + ".kind",
			Message: "kind must be a string",
			Pos:     kindVal.Pos(),
		}
	}
	cond.Kind = kind

	absentVal := v.LookupPath(cue.ParsePath("absent"))
	if absentVal.Exists() {
		absent, err := absentVal.Bool()
		if err != nil {
			return cond, &CompileError{
				Field:   field + ".absent",
				Message: "absent must be a bool",
				Pos:     absentVal.Pos(),
			}
		}
		cond.Absent = absent
	}

	whereVal := v.LookupPath(cue.ParsePath("where"))
	if whereVal.Exists() {
		fields, err := whereVal.Fields()
		if err != nil {
			return cond, &CompileError{
				Field:   field + ".where",
				Message: "where must be a struct of attribute constraints",
				Pos:     whereVal.Pos(),
			}
		}
		for fields.Next() {
			c, err := parseConstraint(fields.Label(), fields.Value(), field)
			if err != nil {
				return cond, err
			}
			cond.Constraints = append(cond.Constraints, c)
		}
	}

	return cond, nil
}

// parseConstraint compiles one where entry. Three shapes:
//
//	attr: 5.5          equality against a literal
//	attr: "$x"         equality against (or binding of) a variable
//	attr: {lt: 6.0}    explicit comparison, operand literal or variable
func parseConstraint(attr string, v cue.Value, condField string) (ir.Constraint, error) {
	field := fmt.Sprintf("%s.where.%s", condField, attr)

	if v.Kind() == cue.StructKind {
		fields, err := v.Fields()
		if err != nil {
			return ir.Constraint{}, formatCUEError(err)
		}

		var ops int
		c := ir.Constraint{Attr: attr}
		for fields.Next() {
			ops++
			op, err := ir.ParseCompareOp(fields.Label())
			if err != nil {
				return ir.Constraint{}, &CompileError{
					Field:   field,
					Message: fmt.Sprintf("unknown operator %q, must be one of eq, ne, lt, le, gt, ge", fields.Label()),
					Pos:     fields.Value().Pos(),
				}
			}
			c.Op = op
			c.Lit, c.Var, err = parseOperand(fields.Value(), field)
			if err != nil {
				return ir.Constraint{}, err
			}
		}
		if ops != 1 {
			return ir.Constraint{}, &CompileError{
				Field:   field,
				Message: "comparison struct must contain exactly one operator",
				Pos:     v.Pos(),
			}
		}
		return c, nil
	}

	lit, varName, err := parseOperand(v, field)
	if err != nil {
		return ir.Constraint{}, err
	}
	return ir.Constraint{Attr: attr, Op: ir.OpEq, Lit: lit, Var: varName}, nil
}

// parseOperand compiles a scalar operand, recognizing "$name" variable
// references. Exactly one of the returned literal and variable is set.
func parseOperand(v cue.Value, field string) (ir.Value, string, error) {
	if v.Kind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return nil, "", formatCUEError(err)
		}
		if name, ok := strings.CutPrefix(s, "$"); ok {
			if name == "" {
				return nil, "", &CompileError{
					Field:   field,
					Message: `"$" is not a valid variable reference`,
					Pos:     v.Pos(),
				}
			}
			return nil, name, nil
		}
		return ir.String(s), "", nil
	}

	lit, err := parseScalar(v, field)
	if err != nil {
		return nil, "", err
	}
	return lit, "", nil
}

// parseScalar compiles a concrete CUE scalar into an attribute value.
func parseScalar(v cue.Value, field string) (ir.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(i), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Float(f), nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be a string, number, or bool, got %s", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// parseThen extracts the action list from a rule.
func parseThen(v cue.Value) ([]ir.Action, error) {
	thenVal := v.LookupPath(cue.ParsePath("then"))
	if !thenVal.Exists() {
		return nil, &CompileError{
			Field:   "then",
			Message: "then clause is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := thenVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "then",
			Message: "then must be a list of actions",
			Pos:     thenVal.Pos(),
		}
	}

	var actions []ir.Action
	for i := 0; iter.Next(); i++ {
		action, err := parseAction(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// parseAction compiles one then entry:
//
//	{assert: "diagnosis", attrs: {condition: "blight"}}
//	{retract: "reading", attrs: {stale: true}}
func parseAction(v cue.Value, idx int) (ir.Action, error) {
	field := fmt.Sprintf("then[%d]", idx)
	action := ir.Action{}

	assertVal := v.LookupPath(cue.ParsePath("assert"))
	retractVal := v.LookupPath(cue.ParsePath("retract"))

	var kindVal cue.Value
	switch {
	case assertVal.Exists() && retractVal.Exists():
		return action, &CompileError{
			Field:   field,
			Message: "action cannot be both assert and retract",
			Pos:     v.Pos(),
		}
	case assertVal.Exists():
		action.Op = ir.ActAssert
		kindVal = assertVal
	case retractVal.Exists():
		action.Op = ir.ActRetract
		kindVal = retractVal
	default:
		return action, &CompileError{
			Field:   field,
			Message: "action requires 'assert' or 'retract' field",
			Pos:     v.Pos(),
		}
	}

	kind, err := kindVal.String()
	if err != nil {
		return action, &CompileError{
			Field:   field,
			Message: "action kind must be a string",
			Pos:     kindVal.Pos(),
		}
	}
	action.Kind = kind
	action.Attrs = make(map[string]ir.Term)

	attrsVal := v.LookupPath(cue.ParsePath("attrs"))
	if attrsVal.Exists() {
		fields, err := attrsVal.Fields()
		if err != nil {
			return action, &CompileError{
				Field:   field + ".attrs",
				Message: "attrs must be a struct",
				Pos:     attrsVal.Pos(),
			}
		}
		for fields.Next() {
			attr := fields.Label()
			lit, varName, err := parseOperand(fields.Value(), fmt.Sprintf("%s.attrs.%s", field, attr))
			if err != nil {
				return action, err
			}
			action.Attrs[attr] = ir.Term{Lit: lit, Var: varName}
		}
	}

	return action, nil
}
