package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds Run's wait for the runners to finish.
const DefaultTimeout = 10 * time.Second

// stepParkGrace bounds RunStep's wait for a runner to reach the gate when
// an advance finds none parked. Runners park within microseconds after a
// broadcast; a flow whose last wave emitted nothing parks nobody at all,
// and the call must report not-yet-done instead of waiting forever.
const stepParkGrace = 100 * time.Millisecond

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateDone
)

// Workflow owns a step table and executes it: one queue and one runner
// goroutine per step, a broadcast bus between them, a built-in terminal
// step, and run-to-completion or stepwise control on top.
//
// A Workflow is safe for concurrent use, but holds at most one run at a
// time; Run fails with ErrAlreadyRunning while a run is in flight.
type Workflow struct {
	steps []Step
	known map[EventType]bool

	timeout           time.Duration
	disableValidation bool
	verbose           bool
	logger            *slog.Logger
	monitor           Monitor
	publisher         RecordPublisher
	now               func() time.Time

	seq atomic.Uint64

	mu          sync.Mutex
	state       runState
	stepwise    bool
	runID       string
	runStart    time.Time
	queues      map[string]*queue
	gate        *gate
	live        int
	runnersDone chan struct{}
	cancelRun   context.CancelFunc
	trace       []TraceEntry
	eventLog    []Event
	result      any
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithTimeout sets the bound on Run's wait for completion (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(w *Workflow) { w.timeout = d }
}

// WithValidationDisabled skips the graph validator. Unchecked defects then
// surface later as blocked runners or a run that never terminates.
func WithValidationDisabled() Option {
	return func(w *Workflow) { w.disableValidation = true }
}

// WithVerbose logs every handler invocation and its outcome.
func WithVerbose() Option {
	return func(w *Workflow) { w.verbose = true }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMonitor registers a monitor invoked synchronously for every record.
func WithMonitor(m Monitor) Option {
	return func(w *Workflow) { w.monitor = m }
}

// WithPublisher registers an external record publisher (for example a
// bus.MemBus) that receives every record.
func WithPublisher(p RecordPublisher) Option {
	return func(w *Workflow) { w.publisher = p }
}

// WithClock overrides the time source. Useful for testing.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// New creates a workflow from a step table, typically assembled with
// Builder. A step with missing metadata is a fatal configuration error.
func New(steps []Step, opts ...Option) (*Workflow, error) {
	names := make(map[string]bool, len(steps))
	for _, st := range steps {
		if err := checkStep(st.Name, st.Handler, st.Accepts, names); err != nil {
			return nil, err
		}
		names[st.Name] = true
	}

	w := &Workflow{
		steps:   append([]Step(nil), steps...),
		known:   knownTypes(steps),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// knownTypes collects every event type the step table mentions. A handler
// returning anything outside this set is a programming error by the step
// author and the value is dropped with a warning.
func knownTypes(steps []Step) map[EventType]bool {
	known := map[EventType]bool{StartEventType: true, StopEventType: true}
	for _, st := range steps {
		for _, t := range st.Accepts {
			known[t] = true
		}
		for _, t := range st.Returns {
			if t != NoEvent {
				known[t] = true
			}
		}
	}
	return known
}

// Steps returns a copy of the declared step table, terminal step excluded.
func (w *Workflow) Steps() []Step {
	return append([]Step(nil), w.steps...)
}

// Run executes the workflow until the stop event reaches the terminal step,
// bounded by the configured timeout. It returns the stop event's payload,
// which may be nil.
//
// Run fails with ErrAlreadyRunning while a run is in flight, with a
// *ValidationError before any runner is created when the step graph is
// incomplete, and with a *TimeoutError when the bound expires — in that
// case all runners are cancelled and the result is undefined.
func (w *Workflow) Run(ctx context.Context, params map[string]any) (any, error) {
	w.mu.Lock()
	if w.state == stateRunning || w.live > 0 {
		w.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	if !w.disableValidation {
		if err := Validate(w.steps); err != nil {
			w.mu.Unlock()
			return nil, err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.beginRunLocked(runCtx, cancel, false)
	runID := w.runID
	runStart := w.runStart
	done := w.runnersDone
	w.mu.Unlock()

	w.emit(NewRecord(RecordRunStarted, runID).WithPayload("steps", len(w.steps)+1))
	w.SendEvent(StartEvent{Params: params})

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-ctx.Done():
		// Cancel the runners but do not wait for them: a handler that
		// ignores cancellation must not pin the caller. The instance
		// refuses a new run until every runner has exited.
		cancel()
		w.markDone()
		w.finish(runID, "canceled", w.now().Sub(runStart))
		return nil, fmt.Errorf("%w: %v", ErrRunCanceled, ctx.Err())
	case <-timer.C:
		cancel()
		w.markDone()
		w.emit(NewRecord(RecordRunTimeout, runID).
			WithElapsed(w.timeout).
			WithPayload("timeout", w.timeout.String()))
		return nil, &TimeoutError{Timeout: w.timeout}
	}

	w.mu.Lock()
	w.state = stateDone
	result := w.result
	w.mu.Unlock()

	w.finish(runID, "completed", w.now().Sub(runStart))
	return result, nil
}

// RunStep advances the workflow by one wave. On the first call for a fresh
// instance it validates the graph, starts the runners in stepwise mode, and
// broadcasts the start event carrying params; on every call it releases one
// wave of eligible runners and waits for that wave to finish. It returns
// (result, true, nil) once the run is done, (nil, false, nil) otherwise.
func (w *Workflow) RunStep(ctx context.Context, params map[string]any) (any, bool, error) {
	w.mu.Lock()
	if w.live > 0 && !w.stepwise {
		w.mu.Unlock()
		return nil, false, ErrAlreadyRunning
	}

	fresh := w.live == 0
	if fresh {
		if !w.disableValidation {
			if err := Validate(w.steps); err != nil {
				w.mu.Unlock()
				return nil, false, err
			}
		}
		// The run outlives any single RunStep call, so its lifetime is
		// detached from the per-call context. The terminal step or a
		// closed gate ends it.
		runCtx, cancel := context.WithCancel(context.Background())
		w.beginRunLocked(runCtx, cancel, true)
	}
	runID := w.runID
	runStart := w.runStart
	g := w.gate
	w.mu.Unlock()

	if fresh {
		w.emit(NewRecord(RecordRunStarted, runID).
			WithPayload("steps", len(w.steps)+1).
			WithPayload("stepwise", true))
		w.SendEvent(StartEvent{Params: params})
	}

	wave := g.Advance()
	if wave == 0 {
		// Right after the start broadcast (or mid-drain) the runners may
		// not have reached the gate yet; give one a bounded chance to park
		// so an advance is never silently lost. The bound matters: a run
		// that stalled without finishing parks no runner, ever.
		parkCtx, cancel := context.WithTimeout(ctx, stepParkGrace)
		parked := g.WaitParked(parkCtx)
		cancel()
		if parked {
			wave = g.Advance()
		}
	}
	w.emit(NewRecord(RecordStepWave, runID).WithPayload("wave", wave))
	g.Settle(ctx)

	w.mu.Lock()
	if w.state != stateDone {
		w.mu.Unlock()
		return nil, false, nil
	}
	result := w.result
	done := w.runnersDone
	w.mu.Unlock()

	<-done
	w.finish(runID, "completed", w.now().Sub(runStart))
	return result, true, nil
}

// IsDone reports whether zero step runners remain live.
func (w *Workflow) IsDone() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live == 0
}

// Result returns the last captured result. It may be stale or nil when
// called before a run completes.
func (w *Workflow) Result() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// SendEvent broadcasts an event: one copy is enqueued into every live
// step's queue, including queues of steps that will discard it. Publishing
// never blocks and never fails; there is no backpressure.
func (w *Workflow) SendEvent(ev Event) {
	w.mu.Lock()
	for _, q := range w.queues {
		q.Put(ev)
	}
	w.eventLog = append(w.eventLog, ev)
	runID := w.runID
	elapsed := w.now().Sub(w.runStart)
	w.mu.Unlock()

	w.emit(NewRecord(RecordEventBroadcast, runID).
		WithEventType(ev.Type()).
		WithElapsed(elapsed))
}

// beginRunLocked resets per-run state and launches one runner per step,
// including the terminal step. Caller holds w.mu.
func (w *Workflow) beginRunLocked(runCtx context.Context, cancel context.CancelFunc, stepwise bool) {
	w.state = stateRunning
	w.stepwise = stepwise
	w.runID = uuid.NewString()
	w.runStart = w.now()
	w.seq.Store(0)
	w.trace = nil
	w.cancelRun = cancel
	w.runnersDone = make(chan struct{})

	table := append(w.Steps(), Step{
		Name:    TerminalStepName,
		Handler: w.terminal,
		Accepts: []EventType{StopEventType},
		Returns: []EventType{NoEvent},
	})

	w.queues = make(map[string]*queue, len(table))
	w.live = len(table)
	if stepwise {
		w.gate = newGate()
	} else {
		w.gate = nil
	}
	g := w.gate

	if g != nil {
		go func() {
			<-runCtx.Done()
			g.Close()
		}()
	}

	for _, st := range table {
		q := newQueue()
		w.queues[st.Name] = q
		go w.runLoop(runCtx, st, q, g)
	}
}

// runLoop is a step runner: it drains the step's queue, discards events of
// unaccepted type, waits at the stepwise gate when one is set, invokes the
// handler, and broadcasts the result. It exits on cancellation at any
// suspension point, leaving no partial log entries behind.
func (w *Workflow) runLoop(ctx context.Context, st Step, q *queue, g *gate) {
	defer w.runnerExit()

	var lastGen uint64
	for {
		ev, err := q.Get(ctx)
		if err != nil {
			return
		}
		if !st.accepts(ev.Type()) {
			continue
		}

		if g != nil {
			gen, ok := g.Wait(lastGen)
			if !ok {
				return
			}
			lastGen = gen
			w.invoke(ctx, st, ev)
			g.Done()
			continue
		}

		w.invoke(ctx, st, ev)
	}
}

// invoke runs the handler for one accepted event and handles its return
// value: nothing for nil, a warning for an unrecognized event type, a
// broadcast otherwise.
func (w *Workflow) invoke(ctx context.Context, st Step, ev Event) {
	w.mu.Lock()
	runID := w.runID
	w.mu.Unlock()

	if w.verbose {
		w.logger.Info("running step", "step", st.Name, "event", ev.Type())
	}
	w.emit(NewRecord(RecordStepStarted, runID).
		WithStep(st.Name).
		WithEventType(ev.Type()))

	started := w.now()
	out, err := st.Handler(ctx, ev)
	elapsed := w.now().Sub(started)

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown in progress; the handler was cancelled mid-flight.
			return
		}
		w.logger.Warn("step failed", "step", st.Name, "event", ev.Type(), "error", err)
		w.emit(NewRecord(RecordStepFailed, runID).
			WithStep(st.Name).
			WithEventType(ev.Type()).
			WithElapsed(elapsed).
			WithPayload("error", err.Error()))
		return
	}

	if w.verbose {
		w.logger.Info("step produced", "step", st.Name, "produced", producedType(out))
	}

	if out == nil {
		w.emit(NewRecord(RecordStepFinished, runID).
			WithStep(st.Name).
			WithEventType(ev.Type()).
			WithElapsed(elapsed).
			WithPayload("produced", string(NoEvent)))
		return
	}

	w.appendTrace(st.Name, ev.Type())

	if !w.known[out.Type()] {
		w.logger.Warn("step returned an unrecognized event type; dropping",
			"step", st.Name, "returned", out.Type())
		w.emit(NewRecord(RecordStepWarned, runID).
			WithStep(st.Name).
			WithEventType(ev.Type()).
			WithElapsed(elapsed).
			WithPayload("returned", string(out.Type())))
		return
	}

	w.emit(NewRecord(RecordStepFinished, runID).
		WithStep(st.Name).
		WithEventType(ev.Type()).
		WithElapsed(elapsed).
		WithPayload("produced", string(out.Type())))
	w.SendEvent(out)
}

// terminal is the built-in step behind TerminalStepName: it captures the
// stop event's payload as the run's result, marks the run done, and cancels
// every runner, itself included.
func (w *Workflow) terminal(_ context.Context, ev Event) (Event, error) {
	var result any
	switch se := ev.(type) {
	case StopEvent:
		result = se.Result
	case *StopEvent:
		result = se.Result
	default:
		return nil, errors.New("terminal step received a non-stop event")
	}

	w.mu.Lock()
	w.result = result
	w.state = stateDone
	cancel := w.cancelRun
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil, nil
}

func (w *Workflow) markDone() {
	w.mu.Lock()
	w.state = stateDone
	w.mu.Unlock()
}

func (w *Workflow) runnerExit() {
	w.mu.Lock()
	w.live--
	if w.live == 0 {
		close(w.runnersDone)
	}
	w.mu.Unlock()
}

func (w *Workflow) finish(runID, status string, elapsed time.Duration) {
	w.emit(NewRecord(RecordRunFinished, runID).
		WithElapsed(elapsed).
		WithPayload("status", status))
}

func (w *Workflow) emit(r Record) {
	r.Seq = w.seq.Add(1)
	if w.monitor != nil {
		w.monitor(r)
	}
	if w.publisher != nil {
		w.publisher.Publish(r)
	}
}

func producedType(ev Event) EventType {
	if ev == nil {
		return NoEvent
	}
	return ev.Type()
}
