// Package viz renders workflows as Mermaid flowchart text. Flows draws every
// declared producer/consumer edge of a step table; Execution draws the path
// one run actually took. Output is plain Mermaid source suitable for
// embedding in Markdown.
package viz

import (
	"fmt"
	"strings"

	"github.com/seam-labs/eventflow/workflow"
)

// Flows renders all possible event flows of a step table: one node per step
// (the built-in terminal step included), one node per event type, and an edge
// for every declared production and consumption. Steps are drawn as boxes,
// events as stadium shapes.
func Flows(steps []workflow.Step) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	events := map[workflow.EventType]bool{}
	declare := func(t workflow.EventType) {
		if t == workflow.NoEvent || events[t] {
			return
		}
		events[t] = true
		fmt.Fprintf(&b, "    %s([%q])\n", eventID(t), string(t))
	}

	table := append(append([]workflow.Step(nil), steps...), workflow.Step{
		Name:    workflow.TerminalStepName,
		Accepts: []workflow.EventType{workflow.StopEventType},
	})

	for _, st := range table {
		fmt.Fprintf(&b, "    %s[%q]\n", stepID(st.Name), st.Name)
	}
	for _, st := range table {
		for _, t := range st.Accepts {
			declare(t)
			fmt.Fprintf(&b, "    %s --> %s\n", eventID(t), stepID(st.Name))
		}
		for _, t := range st.Returns {
			if t == workflow.NoEvent {
				continue
			}
			declare(t)
			fmt.Fprintf(&b, "    %s --> %s\n", stepID(st.Name), eventID(t))
		}
	}

	return b.String()
}

// Execution renders the path a run actually took, from its execution trace:
// one node per invocation, in order, each labeled with the step and the event
// type it consumed.
func Execution(trace []workflow.TraceEntry) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for i, e := range trace {
		fmt.Fprintf(&b, "    n%d[%q]\n", i, fmt.Sprintf("%s: %s", e.Step, e.EventType))
	}
	for i := 1; i < len(trace); i++ {
		fmt.Fprintf(&b, "    n%d --> n%d\n", i-1, i)
	}

	return b.String()
}

// stepID returns a Mermaid-safe node identifier for a step name.
func stepID(name string) string {
	return "step_" + sanitize(name)
}

// eventID returns a Mermaid-safe node identifier for an event type.
func eventID(t workflow.EventType) string {
	return "ev_" + sanitize(string(t))
}

// sanitize maps arbitrary names onto Mermaid identifier characters.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
