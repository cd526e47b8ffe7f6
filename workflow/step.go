package workflow

import (
	"context"
	"fmt"
)

// TerminalStepName is the reserved name of the built-in step that consumes
// the stop event and ends the run. User steps may not use it.
const TerminalStepName = "_done"

// Handler is a step's behavior. It receives an accepted event and returns
// the next event to broadcast, or nil when the step emits nothing.
// Handlers may block; they are invoked from the step's own goroutine and
// should honor ctx cancellation for long-running work.
type Handler func(ctx context.Context, ev Event) (Event, error)

// Step is a named unit of behavior together with its event-type declaration.
// Declared once at workflow-definition time, immutable thereafter.
type Step struct {
	// Name uniquely identifies the step within a workflow.
	Name string

	// Handler is invoked once per accepted event.
	Handler Handler

	// Accepts is the non-empty set of event types this step consumes.
	Accepts []EventType

	// Returns is the set of event types this step may produce.
	// Include NoEvent if the handler may return nil.
	Returns []EventType
}

func (s Step) accepts(t EventType) bool {
	for _, a := range s.Accepts {
		if a == t {
			return true
		}
	}
	return false
}

// ConfigError reports a step registered with missing or invalid metadata.
// It is raised at definition time, before any concurrent work begins.
type ConfigError struct {
	Step   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("step %q: %s", e.Step, e.Reason)
}

// Builder assembles a workflow's step table. Each registration is checked
// immediately; Build reports the first configuration error encountered.
type Builder struct {
	steps []Step
	names map[string]bool
	err   error
}

// NewBuilder creates an empty step table builder.
func NewBuilder() *Builder {
	return &Builder{names: make(map[string]bool)}
}

// Step registers a named handler with its accepted and returned event types.
func (b *Builder) Step(name string, h Handler, accepts []EventType, returns []EventType) *Builder {
	if b.err != nil {
		return b
	}
	if err := checkStep(name, h, accepts, b.names); err != nil {
		b.err = err
		return b
	}
	b.names[name] = true
	b.steps = append(b.steps, Step{
		Name:    name,
		Handler: h,
		Accepts: append([]EventType(nil), accepts...),
		Returns: append([]EventType(nil), returns...),
	})
	return b
}

// Build returns the completed step table or the first registration error.
func (b *Builder) Build() ([]Step, error) {
	if b.err != nil {
		return nil, b.err
	}
	return append([]Step(nil), b.steps...), nil
}

func checkStep(name string, h Handler, accepts []EventType, names map[string]bool) error {
	if name == "" {
		return &ConfigError{Step: name, Reason: "name is empty"}
	}
	if name == TerminalStepName {
		return &ConfigError{Step: name, Reason: "name is reserved for the terminal step"}
	}
	if names[name] {
		return &ConfigError{Step: name, Reason: "duplicate step name"}
	}
	if h == nil {
		return &ConfigError{Step: name, Reason: "handler is nil"}
	}
	if len(accepts) == 0 {
		return &ConfigError{Step: name, Reason: "accepted event types are empty"}
	}
	for _, a := range accepts {
		if a == NoEvent {
			return &ConfigError{Step: name, Reason: "accepted event types may not include none"}
		}
	}
	return nil
}
