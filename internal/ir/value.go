package ir

import (
	"fmt"
	"math"
)

// Value is a sealed interface over the scalar attribute value types.
// Only String, Int, Float, and Bool implement it. Nested objects and
// arrays are not representable - fact attributes are flat by design.
type Value interface {
	attrValue() // Sealed - only types in this package implement it
}

// String represents a string attribute value.
type String string

func (String) attrValue() {}

// Int represents an integer attribute value. Always int64.
type Int int64

func (Int) attrValue() {}

// Float represents a floating-point attribute value (pH, temperature,
// humidity and similar sensor readings). NaN and infinities are rejected
// at every boundary - see MarshalCanonical.
type Float float64

func (Float) attrValue() {}

// Bool represents a boolean attribute value.
type Bool bool

func (Bool) attrValue() {}

// FromAny converts a decoded YAML/JSON scalar to a Value.
// Returns an error for nil, nested containers, and non-finite floats.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null attribute values are not allowed")
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite float: %v", val)
		}
		return Float(val), nil
	case Value:
		return val, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %T (scalars only)", v)
	}
}

// Equal reports whether two values are equal.
// Int and Float compare numerically, so Int(5) equals Float(5). This is
// consistent with canonical encoding, where both render as "5".
func Equal(a, b Value) bool {
	an, aok := numeric(a)
	bn, bok := numeric(b)
	if aok && bok {
		return an == bn
	}
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	default:
		return false
	}
}

// Compare orders two values: -1 if a < b, 0 if equal, 1 if a > b.
// Numbers compare numerically across Int/Float, strings byte-wise.
// Booleans and mixed string/number pairs are not ordered and return
// an error - rule conditions using lt/le/gt/ge on them never match.
func Compare(a, b Value) (int, error) {
	an, aok := numeric(a)
	bn, bok := numeric(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1, nil
		case an > bn:
			return 1, nil
		default:
			return 0, nil
		}
	}

	as, aok := a.(String)
	bs, bok := b.(String)
	if aok && bok {
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		default:
			return 0, nil
		}
	}

	return 0, fmt.Errorf("values %T and %T are not ordered", a, b)
}

// numeric returns the float64 view of a numeric value.
func numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// GoString renders a value for diagnostics and trace output.
func GoString(v Value) string {
	switch val := v.(type) {
	case String:
		return fmt.Sprintf("%q", string(val))
	case Int:
		return fmt.Sprintf("%d", int64(val))
	case Float:
		return formatFloat(float64(val))
	case Bool:
		return fmt.Sprintf("%t", bool(val))
	default:
		return fmt.Sprintf("%#v", v)
	}
}
