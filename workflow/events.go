// Package workflow provides an in-process, event-driven step orchestrator.
// A workflow is a fixed table of named steps; each step declares which event
// types it accepts and which it may return. Steps run concurrently, consume
// events from a broadcast bus, and emit further events until a stop event
// reaches the built-in terminal step.
package workflow

// EventType identifies an event variant. Type identity is the dispatch key:
// a step runner discards any event whose type is not in its accepted set.
type EventType string

const (
	// StartEventType is the distinguished type that kicks off a run.
	StartEventType EventType = "workflow.start"

	// StopEventType is the distinguished terminal type. The built-in
	// terminal step is its only consumer.
	StopEventType EventType = "workflow.stop"

	// NoEvent marks "this step may return nothing" in a step's Returns
	// declaration. It is never a real event type on the bus.
	NoEvent EventType = "none"
)

// String returns the string representation of the EventType.
func (t EventType) String() string {
	return string(t)
}

// Event is an immutable, typed message broadcast between steps.
// Once broadcast, an event is logically shared read-only by every receiver.
type Event interface {
	// Type returns the event's type identity.
	Type() EventType
}

// StartEvent carries the initial invocation arguments for a run.
type StartEvent struct {
	Params map[string]any
}

// Type implements Event.
func (StartEvent) Type() EventType { return StartEventType }

// Get returns the named start parameter, reporting whether it was present.
func (e StartEvent) Get(key string) (any, bool) {
	v, ok := e.Params[key]
	return v, ok
}

// StopEvent ends a run. Result, which may be nil, becomes the run's result.
type StopEvent struct {
	Result any
}

// Type implements Event.
func (StopEvent) Type() EventType { return StopEventType }

// GenericEvent is a convenience Event carrying a free-form payload.
// Workflows with richer needs define their own Event implementations.
type GenericEvent struct {
	EventType EventType
	Payload   map[string]any
}

// NewGenericEvent creates a GenericEvent of the given type.
func NewGenericEvent(t EventType) GenericEvent {
	return GenericEvent{EventType: t, Payload: make(map[string]any)}
}

// Type implements Event.
func (e GenericEvent) Type() EventType { return e.EventType }

// WithPayload adds a key-value pair to the event payload.
func (e GenericEvent) WithPayload(key string, value any) GenericEvent {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// Get returns the named payload value, reporting whether it was present.
func (e GenericEvent) Get(key string) (any, bool) {
	v, ok := e.Payload[key]
	return v, ok
}
