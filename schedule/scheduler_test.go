package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/seam-labs/eventflow/workflow"
)

// fixedDelay is a cron.Schedule whose next firing is always a fixed
// duration after the queried time.
type fixedDelay struct {
	delay time.Duration
}

func (f fixedDelay) Next(t time.Time) time.Time { return t.Add(f.delay) }

// never is a cron.Schedule with no next firing.
type never struct{}

func (never) Next(time.Time) time.Time { return time.Time{} }

func echoWorkflow(t *testing.T) *workflow.Workflow {
	t.Helper()
	steps, err := workflow.NewBuilder().
		Step("echo",
			func(ctx context.Context, ev workflow.Event) (workflow.Event, error) {
				start := ev.(workflow.StartEvent)
				msg, _ := start.Get("msg")
				return workflow.StopEvent{Result: msg}, nil
			},
			[]workflow.EventType{workflow.StartEventType},
			[]workflow.EventType{workflow.StopEventType},
		).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	wf, err := workflow.New(steps)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return wf
}

func TestNew_RequiresWorkflow(t *testing.T) {
	if _, err := New(Config{Expr: "* * * * *"}); err == nil {
		t.Fatalf("New expected error for nil workflow")
	}
}

func TestNew_RejectsBadExpression(t *testing.T) {
	if _, err := New(Config{Workflow: echoWorkflow(t), Expr: "not a cron"}); err == nil {
		t.Fatalf("New expected error for invalid expression")
	}
}

func TestRunOnce_FiresWorkflow(t *testing.T) {
	results := make(chan any, 1)
	s, err := New(Config{
		Workflow: echoWorkflow(t),
		Schedule: fixedDelay{delay: time.Hour},
		Params:   map[string]any{"msg": "scheduled"},
		OnResult: func(result any, err error) {
			if err != nil {
				t.Errorf("run error: %v", err)
			}
			results <- result
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	s.RunOnce()

	select {
	case got := <-results:
		if got != "scheduled" {
			t.Fatalf("result=%v, want %q", got, "scheduled")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for run result")
	}
}

func TestRunOnce_SkipsWhileRunInFlight(t *testing.T) {
	block := make(chan struct{})
	fired := make(chan struct{}, 4)

	steps, err := workflow.NewBuilder().
		Step("slow",
			func(ctx context.Context, ev workflow.Event) (workflow.Event, error) {
				fired <- struct{}{}
				<-block
				return workflow.StopEvent{}, nil
			},
			[]workflow.EventType{workflow.StartEventType},
			[]workflow.EventType{workflow.StopEventType},
		).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	wf, err := workflow.New(steps)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	done := make(chan struct{}, 4)
	s, err := New(Config{
		Workflow: wf,
		Schedule: fixedDelay{delay: time.Hour},
		OnResult: func(any, error) { done <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	s.RunOnce()
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for first firing")
	}

	// Second firing arrives while the first run is still blocked.
	s.RunOnce()
	select {
	case <-fired:
		t.Fatalf("overlapping firing was not skipped")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for first run to finish")
	}
	if len(done) != 0 {
		t.Fatalf("skipped firing still produced a result")
	}
}

func TestStartStop_FiresOnSchedule(t *testing.T) {
	results := make(chan any, 16)
	s, err := New(Config{
		Workflow: echoWorkflow(t),
		Schedule: fixedDelay{delay: 10 * time.Millisecond},
		Params:   map[string]any{"msg": "tick"},
		OnResult: func(result any, err error) { results <- result },
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	// Start on a started scheduler is a no-op.
	if err := s.Start(); err != nil {
		t.Fatalf("second Start error: %v", err)
	}

	select {
	case got := <-results:
		if got != "tick" {
			t.Fatalf("result=%v, want %q", got, "tick")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for scheduled firing")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}

func TestStop_NotStartedIsNoOp(t *testing.T) {
	s, err := New(Config{Workflow: echoWorkflow(t), Expr: "* * * * *"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}

func TestLoop_ExitsWhenScheduleExhausted(t *testing.T) {
	s, err := New(Config{Workflow: echoWorkflow(t), Schedule: never{}})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}
