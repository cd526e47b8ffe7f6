package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/seam-labs/eventflow/workflow"
)

// MetricsHandler translates workflow execution records into OpenTelemetry
// metrics. It records counters and histograms for step invocations, failures,
// broadcasts, and run durations.
type MetricsHandler struct {
	stepInvocations metric.Int64Counter
	stepFailures    metric.Int64Counter
	broadcasts      metric.Int64Counter
	stepDuration    metric.Float64Histogram
	runDuration     metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording workflow execution metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	stepInv, err := meter.Int64Counter("eventflow.step.invocations",
		metric.WithDescription("Number of step handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	stepFail, err := meter.Int64Counter("eventflow.step.failures",
		metric.WithDescription("Number of step handler failures"),
	)
	if err != nil {
		return nil, err
	}

	broadcasts, err := meter.Int64Counter("eventflow.events.broadcast",
		metric.WithDescription("Number of events broadcast to step queues"),
	)
	if err != nil {
		return nil, err
	}

	stepDur, err := meter.Float64Histogram("eventflow.step.duration",
		metric.WithDescription("Duration of step handler invocation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runDur, err := meter.Float64Histogram("eventflow.run.duration",
		metric.WithDescription("Duration of workflow run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		stepInvocations: stepInv,
		stepFailures:    stepFail,
		broadcasts:      broadcasts,
		stepDuration:    stepDur,
		runDuration:     runDur,
	}, nil
}

// Handle processes an execution record and records the appropriate metrics.
// It satisfies workflow.Monitor semantics.
func (h *MetricsHandler) Handle(r workflow.Record) {
	switch r.Kind {
	case workflow.RecordStepFinished, workflow.RecordStepWarned:
		h.handleStepFinished(r)
	case workflow.RecordStepFailed:
		h.handleStepFailed(r)
	case workflow.RecordEventBroadcast:
		h.handleBroadcast(r)
	case workflow.RecordRunFinished:
		h.handleRunFinished(r)
	}
}

// handleStepFinished increments the invocation counter and records duration.
func (h *MetricsHandler) handleStepFinished(r workflow.Record) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("step", r.Step),
		attribute.String("event_type", string(r.EventType)),
	)
	h.stepInvocations.Add(ctx, 1, attrs)
	h.stepDuration.Record(ctx, r.Elapsed.Seconds(), attrs)
}

// handleStepFailed increments both the invocation and failure counters.
func (h *MetricsHandler) handleStepFailed(r workflow.Record) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("step", r.Step),
		attribute.String("event_type", string(r.EventType)),
	)
	h.stepInvocations.Add(ctx, 1, attrs)
	h.stepFailures.Add(ctx, 1, attrs)
}

// handleBroadcast increments the broadcast counter.
func (h *MetricsHandler) handleBroadcast(r workflow.Record) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("event_type", string(r.EventType)),
	)
	h.broadcasts.Add(ctx, 1, attrs)
}

// handleRunFinished records the workflow run duration.
func (h *MetricsHandler) handleRunFinished(r workflow.Record) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("run_id", r.RunID),
	)
	h.runDuration.Record(ctx, r.Elapsed.Seconds(), attrs)
}
