package eventflow_test

import (
	"context"
	"testing"

	"github.com/seam-labs/eventflow"
)

func TestRun_BuildsAndExecutes(t *testing.T) {
	steps, err := eventflow.NewBuilder().
		Step("shout",
			func(ctx context.Context, ev eventflow.Event) (eventflow.Event, error) {
				start := ev.(eventflow.StartEvent)
				word, _ := start.Get("word")
				return eventflow.StopEvent{Result: word.(string) + "!"}, nil
			},
			[]eventflow.EventType{eventflow.StartEventType},
			[]eventflow.EventType{eventflow.StopEventType},
		).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	result, err := eventflow.Run(context.Background(), steps, map[string]any{"word": "go"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result != "go!" {
		t.Fatalf("result=%v, want %q", result, "go!")
	}
}

func TestRun_InvalidTable(t *testing.T) {
	steps := []eventflow.Step{{
		Name:    "dangling",
		Handler: func(context.Context, eventflow.Event) (eventflow.Event, error) { return nil, nil },
		Accepts: []eventflow.EventType{eventflow.StartEventType},
		Returns: []eventflow.EventType{"orphan"},
	}}

	if _, err := eventflow.Run(context.Background(), steps, nil); err == nil {
		t.Fatalf("expected validation error")
	}
}
