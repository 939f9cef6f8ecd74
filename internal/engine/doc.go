// Package engine implements the agrisense forward-chaining inference engine.
//
// The engine is the reasoning core: it matches rules against working
// memory, resolves conflicts among eligible activations, fires one rule
// per cycle, and collects output-kind facts as conclusions.
//
// ARCHITECTURE:
//
// Single-Owner Session Loop:
// A Session processes its match->resolve->fire cycle in the calling
// goroutine, strictly sequentially. Firing one rule can invalidate or
// newly enable other activations, so the cycle must never be
// parallelized within a session. Concurrent sessions are fully
// independent: each owns its working memory, and the shared rule
// library is read-only after load.
//
// Inference Cycle:
//  1. Matching: compute all (rule, binding) activations against live facts
//  2. Activations already fired this session are filtered out (refraction)
//  3. If none remain, the session is Quiescent - collect conclusions
//  4. Conflict resolution selects exactly one activation (total order)
//  5. Firing applies the rule's actions in declaration order
//  6. Back to 1 - every firing re-matches so rules always see current facts
//
// The engine is designed for correctness and determinism, not throughput.
// The matcher recomputes activations from scratch each cycle; rule
// libraries in this domain are small enough that incremental join caching
// would buy nothing worth its complexity.
//
// CRITICAL PATTERNS:
//
// Logical Fact Ids:
// Conflict resolution tie-breaks on fact ids issued by the working
// memory clock. NEVER order on wall-clock timestamps.
//
// Deterministic Scheduling:
// Rules are evaluated in library declaration order, facts in assertion
// order, and the conflict resolver's order is total (priority, support
// recency, rule name, binding hash). No randomness, no concurrency,
// no map-iteration order dependence.
//
// Refraction:
// A (rule, binding, support) triple fires at most once per session.
// Without this, a rule whose assertions are all duplicates would stay
// eligible forever. The cycle ceiling is a separate guard against rule
// sets that oscillate via retract/re-assert loops.
package engine
