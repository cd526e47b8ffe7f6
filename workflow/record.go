package workflow

import "time"

// RecordKind identifies the type of record emitted by the engine.
type RecordKind string

const (
	// RecordRunStarted is emitted when a run begins.
	RecordRunStarted RecordKind = "run.started"

	// RecordEventBroadcast is emitted once per event published to the bus.
	RecordEventBroadcast RecordKind = "event.broadcast"

	// RecordStepStarted is emitted when a step begins handling an event.
	RecordStepStarted RecordKind = "step.started"

	// RecordStepFinished is emitted when a step's handler returns.
	RecordStepFinished RecordKind = "step.finished"

	// RecordStepFailed is emitted when a step's handler returns an error.
	// Handler failures are non-fatal; the runner keeps consuming.
	RecordStepFailed RecordKind = "step.failed"

	// RecordStepWarned is emitted when a handler returns an event of an
	// unrecognized type. The event is dropped, not broadcast.
	RecordStepWarned RecordKind = "step.warned"

	// RecordStepWave is emitted once per stepwise advance.
	RecordStepWave RecordKind = "step.wave"

	// RecordRunFinished is emitted when a run completes.
	RecordRunFinished RecordKind = "run.finished"

	// RecordRunTimeout is emitted when the bounded wait in Run expires.
	RecordRunTimeout RecordKind = "run.timeout"
)

// String returns the string representation of the RecordKind.
func (k RecordKind) String() string {
	return string(k)
}

// Record is a structured, streamable account of what happened during
// execution. Records are for observers only; the engine never reads them
// back to make control decisions.
type Record struct {
	// Kind identifies the record type.
	Kind RecordKind

	// RunID is the unique identifier for this run.
	RunID string

	// Step is the step that produced this record (empty for run-level records).
	Step string

	// EventType is the event involved, when there is one.
	EventType EventType

	// Time is when the record was created.
	Time time.Time

	// Seq is a monotonic sequence number per run (1-indexed).
	Seq uint64

	// Elapsed is the duration since the run started.
	Elapsed time.Duration

	// Payload contains record-specific data. Keep it small.
	Payload map[string]any
}

// NewRecord creates a record with the current timestamp.
func NewRecord(kind RecordKind, runID string) Record {
	return Record{
		Kind:    kind,
		RunID:   runID,
		Time:    time.Now(),
		Payload: make(map[string]any),
	}
}

// WithStep sets the originating step on the record.
func (r Record) WithStep(step string) Record {
	r.Step = step
	return r
}

// WithEventType sets the involved event type on the record.
func (r Record) WithEventType(t EventType) Record {
	r.EventType = t
	return r
}

// WithElapsed sets the elapsed duration on the record.
func (r Record) WithElapsed(elapsed time.Duration) Record {
	r.Elapsed = elapsed
	return r
}

// WithPayload adds a key-value pair to the record payload.
func (r Record) WithPayload(key string, value any) Record {
	if r.Payload == nil {
		r.Payload = make(map[string]any)
	}
	r.Payload[key] = value
	return r
}

// Monitor receives records during execution. Implementations can log,
// store, or forward records as needed.
type Monitor func(Record)

// MultiMonitor combines multiple monitors into one.
func MultiMonitor(monitors ...Monitor) Monitor {
	return func(r Record) {
		for _, m := range monitors {
			if m != nil {
				m(r)
			}
		}
	}
}

// RecordPublisher can publish records to external subscribers. The bus
// package satisfies this interface, letting the engine distribute records
// without importing it.
type RecordPublisher interface {
	Publish(r Record)
}
