package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/seam-labs/eventflow/workflow"
)

// Config configures a workflow scheduler.
type Config struct {
	// Workflow is the workflow to run on each firing.
	Workflow *workflow.Workflow

	// Expr is the five-field UTC cron expression.
	Expr string

	// Schedule overrides Expr when set. Useful for testing.
	Schedule cron.Schedule

	// Params are the start parameters passed to each run.
	Params map[string]any

	// Now overrides the time source. Defaults to time.Now in UTC.
	Now func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnResult, when set, is invoked after each run with its outcome.
	OnResult func(result any, err error)
}

// Scheduler fires a workflow on a cron schedule. A firing that comes due
// while the previous run is still in flight is skipped, not queued.
type Scheduler struct {
	wf       *workflow.Workflow
	schedule cron.Schedule
	params   map[string]any
	now      func() time.Time
	logger   *slog.Logger
	onResult func(result any, err error)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a scheduler from the config. Either Expr or Schedule must be
// set.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Workflow == nil {
		return nil, errors.New("scheduler workflow is nil")
	}
	sched := cfg.Schedule
	if sched == nil {
		parsed, err := Parse(cfg.Expr)
		if err != nil {
			return nil, err
		}
		sched = parsed
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		wf:       cfg.Workflow,
		schedule: sched,
		params:   cloneParams(cfg.Params),
		now:      cfg.Now,
		logger:   cfg.Logger,
		onResult: cfg.OnResult,
	}, nil
}

// Start begins firing in the background. Calling Start on a started
// scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.loop(loopCtx)
	}()
	return nil
}

// Stop halts firing and waits for the loop to exit, bounded by ctx. A run
// already in flight is not interrupted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce fires the workflow immediately, subject to overlap suppression.
func (s *Scheduler) RunOnce() {
	s.fire()
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next := s.schedule.Next(s.now().UTC())
		if next.IsZero() {
			s.logger.Warn("schedule has no next firing; stopping")
			return
		}

		timer := time.NewTimer(next.Sub(s.now().UTC()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire()
		}
	}
}

// fire launches one run unless the previous one is still in flight.
// The run's lifetime is detached from the scheduler loop: Stop does not
// interrupt a run already in flight.
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("skipping firing: prior scheduled run is still active")
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()

		result, err := s.wf.Run(context.Background(), cloneParams(s.params))
		if err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
		if s.onResult != nil {
			s.onResult(result, err)
		}
	}()
}

func cloneParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
