package otel_test

import (
	"testing"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	flowotel "github.com/seam-labs/eventflow/otel"
	"github.com/seam-labs/eventflow/workflow"
)

// newTestTracer returns a tracer backed by an in-memory span exporter.
func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	return exporter, tp
}

func record(kind workflow.RecordKind, runID string) workflow.Record {
	return workflow.NewRecord(kind, runID)
}

func TestTracingHandler_RunStartedCreatesRootSpan(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	h.Handle(record(workflow.RecordRunStarted, "run-1"))

	// Verify active run span context is valid.
	sc := h.ActiveRunSpanContext("run-1")
	if !sc.IsValid() {
		t.Fatal("expected valid run span context after run.started")
	}

	// End the run to flush the span.
	h.Handle(record(workflow.RecordRunFinished, "run-1").
		WithElapsed(100 * time.Millisecond).
		WithPayload("status", "completed"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "run:run-1" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "run:run-1")
	}
	if spans[0].Status.Code != otelcodes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status.Code)
	}
}

func TestTracingHandler_StepSpanNestsUnderRun(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	h.Handle(record(workflow.RecordRunStarted, "run-1"))
	h.Handle(record(workflow.RecordStepStarted, "run-1").
		WithStep("extract").
		WithEventType(workflow.StartEventType))

	runSC := h.ActiveRunSpanContext("run-1")
	stepSC := h.ActiveStepSpanContext("run-1", "extract")
	if !stepSC.IsValid() {
		t.Fatal("expected valid step span context after step.started")
	}
	if stepSC.TraceID() != runSC.TraceID() {
		t.Error("step span is not in the run's trace")
	}

	h.Handle(record(workflow.RecordStepFinished, "run-1").
		WithStep("extract").
		WithElapsed(5 * time.Millisecond).
		WithPayload("produced", "parsed"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Name != "step:extract" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "step:extract")
	}
	if spans[0].Parent.SpanID() != runSC.SpanID() {
		t.Error("step span's parent is not the run span")
	}

	// The step span should be released after it ends.
	if h.ActiveStepSpanContext("run-1", "extract").IsValid() {
		t.Error("step span still active after step.finished")
	}
}

func TestTracingHandler_StepFailedSetsErrorStatus(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	h.Handle(record(workflow.RecordRunStarted, "run-1"))
	h.Handle(record(workflow.RecordStepStarted, "run-1").WithStep("flaky"))
	h.Handle(record(workflow.RecordStepFailed, "run-1").
		WithStep("flaky").
		WithPayload("error", "boom"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status.Code)
	}
	if spans[0].Status.Description != "boom" {
		t.Errorf("span status description = %q, want %q", spans[0].Status.Description, "boom")
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected a recorded error event on the span")
	}
}

func TestTracingHandler_WarnedEndsStepSpan(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	h.Handle(record(workflow.RecordRunStarted, "run-1"))
	h.Handle(record(workflow.RecordStepStarted, "run-1").WithStep("answer"))
	h.Handle(record(workflow.RecordStepWarned, "run-1").
		WithStep("answer").
		WithPayload("returned", "mystery"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if h.ActiveStepSpanContext("run-1", "answer").IsValid() {
		t.Error("step span still active after step.warned")
	}
}

func TestTracingHandler_BroadcastAddsRunSpanEvent(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	h.Handle(record(workflow.RecordRunStarted, "run-1"))
	h.Handle(record(workflow.RecordEventBroadcast, "run-1").
		WithEventType(workflow.StartEventType))
	h.Handle(record(workflow.RecordRunFinished, "run-1").
		WithPayload("status", "completed"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if len(spans[0].Events) != 1 || spans[0].Events[0].Name != "event.broadcast" {
		t.Errorf("run span events = %+v, want one event.broadcast", spans[0].Events)
	}
}

func TestTracingHandler_TimeoutSetsErrorStatus(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	h.Handle(record(workflow.RecordRunStarted, "run-1"))
	h.Handle(record(workflow.RecordRunTimeout, "run-1").
		WithElapsed(10 * time.Second))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status.Code)
	}
}

func TestTracingHandler_UnknownRunIsIgnored(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	// Records for a run that never started must not panic or emit spans.
	h.Handle(record(workflow.RecordStepFinished, "run-x").WithStep("ghost"))
	h.Handle(record(workflow.RecordRunFinished, "run-x"))

	if spans := exporter.GetSpans(); len(spans) != 0 {
		t.Errorf("expected no spans, got %d", len(spans))
	}
}
