// Package opt implements the optimization engine behind the DOE wizard's
// proposal screen: search-space inference, constraint pruning, mixed-type
// candidate sampling, acquisition scoring, guardrail filtering, and the
// human-in-the-loop (HITL) risk ladder.
//
// # Reading Guide
//
// Start with these three files to understand the pipeline:
//   - space.go: profile/champion contracts and design-space inference
//   - pool.go: Latin Hypercube + categorical candidate sampling
//   - runner.go: the single-pass orchestrator and its fallback ladder
//
// # Architecture
//
// The engine is synchronous and stateless per run. The core components
// (inference, constraints, pool, distance, scoring, guardrails, selection,
// HITL) do no I/O; only the orchestrator in runner.go writes artifacts, using
// the pure data types in the opt/artifacts sub-package.
//
// Determinism: every random draw flows through a PartitionedRNG (rng.go)
// derived from the run seed, so a given (space, pool size, seed) triple
// reproduces the same candidate pool.
package opt
