// Package task is the lifecycle engine: the finite state machine that
// drives one task from creation to completion, its dependency joins, its
// per-item retry policy, and the scheduler that runs tasks on a worker
// pool. Concrete work kinds (search, annotate, filter) implement the
// Hooks contract and are driven by the shared engine.
package task
