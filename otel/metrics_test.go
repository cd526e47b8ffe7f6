package otel_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	flowotel "github.com/seam-labs/eventflow/otel"
	"github.com/seam-labs/eventflow/workflow"
)

// newTestMeter returns a meter backed by a manual reader for collecting
// metrics in tests.
func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

// collectMetrics reads all metrics from the reader.
func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

// findMetric searches for a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is not an int64 sum", m.Name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsHandler_StepFinishedRecordsInvocationAndDuration(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := flowotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(record(workflow.RecordStepFinished, "run-1").
		WithStep("extract").
		WithEventType(workflow.StartEventType).
		WithElapsed(250 * time.Millisecond))

	rm := collectMetrics(t, reader)

	inv := findMetric(rm, "eventflow.step.invocations")
	if inv == nil {
		t.Fatal("eventflow.step.invocations not recorded")
	}
	if got := sumValue(t, inv); got != 1 {
		t.Errorf("invocations = %d, want 1", got)
	}

	dur := findMetric(rm, "eventflow.step.duration")
	if dur == nil {
		t.Fatal("eventflow.step.duration not recorded")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("step.duration is not a float64 histogram")
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 0.25 {
		t.Errorf("step.duration sum = %+v, want one point of 0.25s", hist.DataPoints)
	}
}

func TestMetricsHandler_StepFailedCountsBothWays(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := flowotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(record(workflow.RecordStepFailed, "run-1").
		WithStep("flaky").
		WithPayload("error", "boom"))

	rm := collectMetrics(t, reader)

	inv := findMetric(rm, "eventflow.step.invocations")
	if inv == nil || sumValue(t, inv) != 1 {
		t.Error("failed invocation not counted as an invocation")
	}
	fail := findMetric(rm, "eventflow.step.failures")
	if fail == nil || sumValue(t, fail) != 1 {
		t.Error("failure not counted")
	}
}

func TestMetricsHandler_WarnedCountsAsInvocation(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := flowotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(record(workflow.RecordStepWarned, "run-1").WithStep("answer"))

	rm := collectMetrics(t, reader)
	inv := findMetric(rm, "eventflow.step.invocations")
	if inv == nil || sumValue(t, inv) != 1 {
		t.Error("warned invocation not counted")
	}
	if fail := findMetric(rm, "eventflow.step.failures"); fail != nil && sumValue(t, fail) != 0 {
		t.Error("warned invocation counted as a failure")
	}
}

func TestMetricsHandler_BroadcastCounter(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := flowotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	for i := 0; i < 3; i++ {
		h.Handle(record(workflow.RecordEventBroadcast, "run-1").
			WithEventType("tick"))
	}

	rm := collectMetrics(t, reader)
	bc := findMetric(rm, "eventflow.events.broadcast")
	if bc == nil {
		t.Fatal("eventflow.events.broadcast not recorded")
	}
	if got := sumValue(t, bc); got != 3 {
		t.Errorf("broadcasts = %d, want 3", got)
	}
}

func TestMetricsHandler_RunDuration(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := flowotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(record(workflow.RecordRunFinished, "run-1").
		WithElapsed(2 * time.Second).
		WithPayload("status", "completed"))

	rm := collectMetrics(t, reader)
	dur := findMetric(rm, "eventflow.run.duration")
	if dur == nil {
		t.Fatal("eventflow.run.duration not recorded")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("run.duration is not a float64 histogram")
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 2.0 {
		t.Errorf("run.duration = %+v, want one point of 2s", hist.DataPoints)
	}
}

func TestMetricsHandler_IgnoresOtherKinds(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := flowotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(record(workflow.RecordRunStarted, "run-1"))
	h.Handle(record(workflow.RecordStepStarted, "run-1").WithStep("extract"))
	h.Handle(record(workflow.RecordStepWave, "run-1"))

	rm := collectMetrics(t, reader)
	if inv := findMetric(rm, "eventflow.step.invocations"); inv != nil && sumValue(t, inv) != 0 {
		t.Error("non-terminal records counted as invocations")
	}
}
