// Package otel provides OpenTelemetry integration for workflow execution
// records.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seam-labs/eventflow/workflow"
)

// TracingHandler translates workflow execution records into OpenTelemetry
// spans. It maintains maps of active run and step spans, creating and ending
// them based on record kind.
type TracingHandler struct {
	tracer trace.Tracer

	mu        sync.RWMutex
	runSpans  map[string]trace.Span       // runID -> span
	runCtxs   map[string]context.Context  // runID -> context (for child spans)
	stepSpans map[string]trace.Span       // runID:step -> span
}

// NewTracingHandler creates a new TracingHandler that uses the given tracer
// to create spans from execution records.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		runSpans:  make(map[string]trace.Span),
		runCtxs:   make(map[string]context.Context),
		stepSpans: make(map[string]trace.Span),
	}
}

// Handle processes an execution record and creates or ends spans accordingly.
// It satisfies workflow.Monitor semantics.
func (h *TracingHandler) Handle(r workflow.Record) {
	switch r.Kind {
	case workflow.RecordRunStarted:
		h.handleRunStarted(r)
	case workflow.RecordStepStarted:
		h.handleStepStarted(r)
	case workflow.RecordStepFinished:
		h.handleStepFinished(r)
	case workflow.RecordStepFailed:
		h.handleStepFailed(r)
	case workflow.RecordStepWarned:
		h.handleStepWarned(r)
	case workflow.RecordEventBroadcast:
		h.handleBroadcast(r)
	case workflow.RecordRunFinished, workflow.RecordRunTimeout:
		h.handleRunFinished(r)
	}
}

// handleRunStarted creates a root span for the run.
func (h *TracingHandler) handleRunStarted(r workflow.Record) {
	ctx, span := h.tracer.Start(context.Background(), "run:"+r.RunID,
		trace.WithAttributes(
			attribute.String("eventflow.run_id", r.RunID),
		),
		trace.WithTimestamp(r.Time),
	)

	h.mu.Lock()
	h.runSpans[r.RunID] = span
	h.runCtxs[r.RunID] = ctx
	h.mu.Unlock()
}

// handleStepStarted creates a child span under the run span. A step runner
// handles one event at a time, so at most one span per (run, step) is live.
func (h *TracingHandler) handleStepStarted(r workflow.Record) {
	h.mu.RLock()
	parentCtx, ok := h.runCtxs[r.RunID]
	h.mu.RUnlock()

	if !ok {
		// No parent run span; start from background context.
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "step:"+r.Step,
		trace.WithAttributes(
			attribute.String("eventflow.run_id", r.RunID),
			attribute.String("eventflow.step", r.Step),
			attribute.String("eventflow.event_type", string(r.EventType)),
		),
		trace.WithTimestamp(r.Time),
	)

	key := r.RunID + ":" + r.Step
	h.mu.Lock()
	h.stepSpans[key] = span
	h.mu.Unlock()
}

// handleStepFinished ends the step span with success status.
func (h *TracingHandler) handleStepFinished(r workflow.Record) {
	span, ok := h.takeStepSpan(r)
	if !ok {
		return
	}

	if produced, found := r.Payload["produced"].(string); found {
		span.SetAttributes(attribute.String("eventflow.produced", produced))
	}
	span.SetAttributes(attribute.String("eventflow.duration", r.Elapsed.String()))
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(r.Time))
}

// handleStepFailed ends the step span with error status.
func (h *TracingHandler) handleStepFailed(r workflow.Record) {
	span, ok := h.takeStepSpan(r)
	if !ok {
		return
	}

	errMsg := "unknown error"
	if msg, found := r.Payload["error"].(string); found {
		errMsg = msg
	}
	span.SetStatus(codes.Error, errMsg)
	span.RecordError(
		spanError(errMsg),
		trace.WithTimestamp(r.Time),
	)
	span.End(trace.WithTimestamp(r.Time))
}

// handleStepWarned ends the step span, noting the dropped return value.
func (h *TracingHandler) handleStepWarned(r workflow.Record) {
	span, ok := h.takeStepSpan(r)
	if !ok {
		return
	}

	if returned, found := r.Payload["returned"].(string); found {
		span.SetAttributes(attribute.String("eventflow.dropped_return", returned))
	}
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(r.Time))
}

// handleBroadcast adds a span event on the run span for each broadcast.
func (h *TracingHandler) handleBroadcast(r workflow.Record) {
	h.mu.RLock()
	span, ok := h.runSpans[r.RunID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	span.AddEvent("event.broadcast",
		trace.WithTimestamp(r.Time),
		trace.WithAttributes(
			attribute.String("eventflow.event_type", string(r.EventType)),
		),
	)
}

// handleRunFinished ends the root run span.
func (h *TracingHandler) handleRunFinished(r workflow.Record) {
	h.mu.Lock()
	span, ok := h.runSpans[r.RunID]
	if ok {
		delete(h.runSpans, r.RunID)
		delete(h.runCtxs, r.RunID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	status := ""
	if s, found := r.Payload["status"].(string); found {
		status = s
	}
	if r.Kind == workflow.RecordRunTimeout {
		status = "timeout"
	}

	span.SetAttributes(
		attribute.String("eventflow.duration", r.Elapsed.String()),
		attribute.String("eventflow.status", status),
	)

	switch status {
	case "timeout":
		span.SetStatus(codes.Error, "run timed out")
	case "canceled":
		span.SetStatus(codes.Error, "run canceled")
	default:
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(r.Time))
}

// takeStepSpan removes and returns the live span for the record's step.
func (h *TracingHandler) takeStepSpan(r workflow.Record) (trace.Span, bool) {
	key := r.RunID + ":" + r.Step

	h.mu.Lock()
	span, ok := h.stepSpans[key]
	if ok {
		delete(h.stepSpans, key)
	}
	h.mu.Unlock()

	return span, ok
}

// ActiveStepSpanContext returns the SpanContext for the active step span
// identified by runID and step. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveStepSpanContext(runID, step string) trace.SpanContext {
	key := runID + ":" + step

	h.mu.RLock()
	span, ok := h.stepSpans[key]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// ActiveRunSpanContext returns the SpanContext for the active run span
// identified by runID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveRunSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.runSpans[runID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
