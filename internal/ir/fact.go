package ir

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Attrs maps attribute names to scalar values.
// Use SortedKeys() for deterministic iteration.
type Attrs map[string]Value

// Fact is an immutable typed record in working memory.
//
// ID is assigned by the fact store's logical clock at assertion time:
// unique within a session and strictly increasing in assertion order.
// That order is the sole determinism anchor for conflict resolution.
type Fact struct {
	ID    int64  `json:"id"`
	Kind  string `json:"kind"`
	Attrs Attrs  `json:"attrs"`
}

// Clone returns a deep copy of the attribute map.
// Values are scalars, so a shallow map copy is a deep copy.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return Attrs{}
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// AttrsFromAny converts a decoded YAML/JSON map into an attribute map.
// Used at ingestion boundaries (observation files, test scenarios).
func AttrsFromAny(m map[string]any) (Attrs, error) {
	attrs := make(Attrs, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		attrs[k] = v
	}
	return attrs, nil
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (a Attrs) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// String renders attrs as kind-independent "{k: v, ...}" in key order.
// Used in logs and trace output; not an encoding.
func (a Attrs) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range a.SortedKeys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(GoString(a[k]))
	}
	b.WriteByte('}')
	return b.String()
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// CRITICAL: Must use unicode/utf16.Encode for correct surrogate handling.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}
