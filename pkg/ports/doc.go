/*
Package ports defines the driven ports (interfaces) for the Arbor core.

These interfaces decouple the orchestration core from external collaborators,
allowing it to work with various data backends, metrics pipelines, and intent
resolvers.

# Key Interfaces

  - DataStore: catalog record lookup and mutation.
  - MetricsSink: fire-and-forget metric emission; must never block a turn.
  - IntentResolver: turns raw user text into a structured Intent.
*/
package ports
