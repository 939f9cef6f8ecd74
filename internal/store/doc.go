// Package store persists session traces to SQLite: every observed and
// derived fact, every rule firing, and the final conclusions.
//
// The trace is an audit trail, not the reasoning substrate - inference
// runs entirely in memory and never reads the database. Writes are
// idempotent (ON CONFLICT DO NOTHING), so re-recording a session is
// harmless, and the firings table carries a UNIQUE constraint mirroring
// the engine's refraction key as a backstop.
package store
