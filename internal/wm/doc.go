// Package wm implements working memory: the per-session fact store.
//
// A Store holds the live facts of exactly one advisory session. It is
// created empty at session start, populated by observations and rule
// actions, and discarded at session end. Stores are never shared across
// sessions.
//
// CRITICAL PATTERNS:
//
// Logical fact ids:
// Every assertion is stamped with a strictly increasing id from the
// store's clock. Assertion order is the sole determinism anchor for
// conflict resolution - NEVER wall-clock timestamps.
//
// Idempotent knowledge:
// Asserting a (kind, attrs) pair that is already live fails with
// *DuplicateFactError and leaves the store unchanged. Identity is the
// canonical content hash (ir.FactHash), so attribute ordering and
// Int/Float spelling of the same number cannot create duplicates. This
// is what makes rule firing loops terminate.
//
// Single-session ownership:
// A Store is NOT safe for concurrent use. One goroutine owns one session;
// concurrent sessions each own their own Store.
package wm
