// Package ir provides the canonical data model for the agrisense engine.
//
// This package contains type definitions and encoding only. All other
// internal packages import ir; ir imports nothing internal. This keeps IR
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Attribute values are scalars only: string, int64, float64, bool.
//     No nested objects or arrays in fact attributes.
//   - Facts are immutable once asserted; "updating" a fact is a retract
//     followed by a fresh assert.
//   - All identity hashing goes through MarshalCanonical (RFC 8785 key
//     ordering, NFC-normalized strings, shortest round-trip floats) with
//     SHA-256 domain separation.
//   - Fact ids are logical clock values, never wall-clock timestamps.
package ir
