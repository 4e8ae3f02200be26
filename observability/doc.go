// Package observability configures OpenTelemetry tracing and metrics.
// Exporters are opt-in; when disabled the global noop providers are used and
// spans and instruments cost nothing.
package observability
