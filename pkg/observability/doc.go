/*
Package observability provides ports.MetricsSink implementations: a
Prometheus sink for production, a structured-log sink for development, and
an asynchronous decorator that guarantees Emit never blocks the hot path.
*/
package observability
