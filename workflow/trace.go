package workflow

// TraceEntry records one handler invocation that produced a result:
// which step ran and which event type it consumed. The trace exists for
// diagnostics and visualization only; the engine never reads it back.
type TraceEntry struct {
	Step      string
	EventType EventType
}

// Trace returns a copy of the current run's execution trace, in invocation
// order. It is cleared at the start of each run.
func (w *Workflow) Trace() []TraceEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]TraceEntry(nil), w.trace...)
}

// EventLog returns a copy of every event broadcast so far, in broadcast
// order. The log is append-only and accumulates across runs.
func (w *Workflow) EventLog() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Event(nil), w.eventLog...)
}

func (w *Workflow) appendTrace(step string, t EventType) {
	w.mu.Lock()
	w.trace = append(w.trace, TraceEntry{Step: step, EventType: t})
	w.mu.Unlock()
}
