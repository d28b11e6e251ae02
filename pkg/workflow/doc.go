/*
Package workflow schedules and executes directed acyclic graphs of tasks on
a bounded worker pool.

A Spec is an immutable description of the graph; Submit validates it wholly
(acyclicity, registry lookups) in one pass and then executes it atomically —
there is no partially-built, partially-valid state. Each task carries its own
retry budget and timeout; failures retry with exponential backoff and, once
exhausted, skip every transitive dependent. Cancellation stops dispatch
immediately, signals running tasks cooperatively, and never waits on a
non-cooperative task beyond a bounded grace period.

Dispatch is deterministic: among tasks whose dependencies are satisfied,
submission order wins.
*/
package workflow
