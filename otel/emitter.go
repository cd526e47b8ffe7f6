package otel

import (
	"github.com/seam-labs/eventflow/workflow"
)

// EnrichMonitor wraps a Monitor with OpenTelemetry trace context.
// When records pass through, it looks up the active span from the
// TracingHandler and adds trace_id and span_id payload entries.
//
// For step-level records (where Step is set), the step span is checked first.
// If no step span is found, it falls back to the run-level span.
// When no span is active, the record passes through unchanged.
func EnrichMonitor(forward workflow.Monitor, tracing *TracingHandler) workflow.Monitor {
	return func(r workflow.Record) {
		// For step-level records, try the step span first.
		if r.Step != "" {
			sc := tracing.ActiveStepSpanContext(r.RunID, r.Step)
			if sc.IsValid() {
				r = r.WithPayload("trace_id", sc.TraceID().String()).
					WithPayload("span_id", sc.SpanID().String())
				forward(r)
				return
			}
		}
		// Fallback to the run-level span.
		if r.RunID != "" {
			sc := tracing.ActiveRunSpanContext(r.RunID)
			if sc.IsValid() {
				r = r.WithPayload("trace_id", sc.TraceID().String()).
					WithPayload("span_id", sc.SpanID().String())
			}
		}
		forward(r)
	}
}
