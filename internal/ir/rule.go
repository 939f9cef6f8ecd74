package ir

import "fmt"

// CompareOp identifies a comparison operator in a condition constraint.
type CompareOp string

const (
	OpEq CompareOp = "eq"
	OpNe CompareOp = "ne"
	OpLt CompareOp = "lt"
	OpLe CompareOp = "le"
	OpGt CompareOp = "gt"
	OpGe CompareOp = "ge"
)

// ValidCompareOps defines the allowed comparison operators.
var ValidCompareOps = map[CompareOp]bool{
	OpEq: true,
	OpNe: true,
	OpLt: true,
	OpLe: true,
	OpGt: true,
	OpGe: true,
}

// ParseCompareOp validates and converts an operator string.
func ParseCompareOp(s string) (CompareOp, error) {
	op := CompareOp(s)
	if !ValidCompareOps[op] {
		return "", fmt.Errorf("invalid comparison operator %q", s)
	}
	return op, nil
}

// EvalCompare applies op to the ordering/equality of two values.
// Ordered operators on unordered pairs (booleans, mixed string/number)
// evaluate to false rather than erroring - the condition just never matches.
func EvalCompare(op CompareOp, fact, operand Value) bool {
	switch op {
	case OpEq:
		return Equal(fact, operand)
	case OpNe:
		return !Equal(fact, operand)
	default:
		c, err := Compare(fact, operand)
		if err != nil {
			return false
		}
		switch op {
		case OpLt:
			return c < 0
		case OpLe:
			return c <= 0
		case OpGt:
			return c > 0
		case OpGe:
			return c >= 0
		}
	}
	return false
}

// Constraint tests one attribute of a candidate fact, or binds it.
//
// Exactly one of Lit and Var is set. With Var and OpEq, an unbound
// variable binds to the fact's attribute value; a bound variable tests
// equality. Ordered operators require Var to already be bound (validated
// at library load).
type Constraint struct {
	Attr string    `json:"attr"`
	Op   CompareOp `json:"op"`
	Lit  Value     `json:"lit,omitempty"`
	Var  string    `json:"var,omitempty"`
}

// Condition is a pattern over facts of one kind.
//
// Absent inverts the condition: it is satisfied when NO live fact of Kind
// matches the constraints under the current binding. Absent conditions
// bind nothing (their variables must already be bound, validated at load).
type Condition struct {
	Kind        string       `json:"kind"`
	Absent      bool         `json:"absent,omitempty"`
	Constraints []Constraint `json:"constraints,omitempty"`
}

// ActionOp identifies a rule action operation.
type ActionOp string

const (
	ActAssert  ActionOp = "assert"
	ActRetract ActionOp = "retract"
)

// Term is an attribute template value in an action: either a literal or
// a reference to a variable bound by the rule's conditions.
type Term struct {
	Lit Value  `json:"lit,omitempty"`
	Var string `json:"var,omitempty"`
}

// Action asserts or retracts facts when a rule fires.
//
// Assert adds one fact of Kind with the resolved attribute template.
// Retract removes every live fact of Kind whose attributes match the
// resolved template (subset equality) - rules address facts by pattern,
// never by raw fact id.
type Action struct {
	Op    ActionOp        `json:"op"`
	Kind  string          `json:"kind"`
	Attrs map[string]Term `json:"attrs,omitempty"`
}

// Rule is an immutable condition->action definition.
//
// Name is unique within a library and used for tie-breaking and
// diagnostics. Higher Priority fires first. Conditions and Actions keep
// their declaration order; both orders are semantically significant.
type Rule struct {
	Name       string      `json:"name"`
	Priority   int         `json:"priority"`
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`
}

// Binding maps rule variables to the values they were unified with.
type Binding map[string]Value

// Clone returns a copy of the binding.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
