package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports a structural defect in the declared
// producer/consumer graph. Exactly one of its fields is populated,
// matching the first failed check.
type ValidationError struct {
	// Unproduced lists event types some step accepts but no step returns.
	Unproduced []EventType

	// Unconsumed lists event types some step returns but no step accepts
	// (the stop type is exempt: the terminal step consumes it).
	Unconsumed []EventType

	// NoStartConsumer is set when no step accepts the start type.
	NoStartConsumer bool

	// NoStopProducer is set when no step's returns include the stop type.
	NoStopProducer bool
}

func (e *ValidationError) Error() string {
	switch {
	case len(e.Unproduced) > 0:
		return fmt.Sprintf("the following events are consumed but never produced: %s", joinTypes(e.Unproduced))
	case len(e.Unconsumed) > 0:
		return fmt.Sprintf("the following events are produced but never consumed: %s", joinTypes(e.Unconsumed))
	case e.NoStartConsumer:
		return "no step consumes the start event"
	case e.NoStopProducer:
		return "no step produces the stop event"
	}
	return "workflow validation failed"
}

func joinTypes(types []EventType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// Validate checks the declared event-production/consumption graph of the
// step table for completeness. It is a pure function with no side effects,
// run once before any runner is created. The built-in terminal step is
// exempt: its output type (stop) is the designated terminal type and its
// consumption of stop is covered by the dedicated no-stop-producer check.
//
// Validate fails when:
//   - some accepted event type is never returned by any step;
//   - some returned event type, other than start or stop, is never accepted;
//   - no step accepts the start type;
//   - no step's returns include the stop type.
func Validate(steps []Step) error {
	produced := map[EventType]bool{StartEventType: true}
	consumed := map[EventType]bool{}

	for _, st := range steps {
		for _, t := range st.Accepts {
			consumed[t] = true
		}
		for _, t := range st.Returns {
			if t == NoEvent {
				// Some steps may not trigger other events.
				continue
			}
			produced[t] = true
		}
	}

	if missing := diff(consumed, produced, nil); len(missing) > 0 {
		return &ValidationError{Unproduced: missing}
	}

	// Start and stop are exempt from the unconsumed check: the engine
	// injects start and the terminal step consumes stop, and each has a
	// dedicated check below.
	if unused := diff(produced, consumed, map[EventType]bool{StartEventType: true, StopEventType: true}); len(unused) > 0 {
		return &ValidationError{Unconsumed: unused}
	}

	startConsumed := false
	for _, st := range steps {
		if st.accepts(StartEventType) {
			startConsumed = true
			break
		}
	}
	if !startConsumed {
		return &ValidationError{NoStartConsumer: true}
	}

	if !produced[StopEventType] {
		return &ValidationError{NoStopProducer: true}
	}

	return nil
}

// diff returns the members of a that are in neither b nor exempt, sorted
// for deterministic error messages.
func diff(a, b, exempt map[EventType]bool) []EventType {
	var out []EventType
	for t := range a {
		if b[t] || exempt[t] {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
