// Package observability provides OpenTelemetry tracing hooks for the
// harness. Signal processing shows up as spans when a block is wrapped
// with block.WithTracing; without a configured tracer provider the hooks
// are no-ops.
package observability
