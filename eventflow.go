// Package eventflow provides an in-process, event-driven workflow engine.
// Steps declare the event types they accept and return; the engine broadcasts
// every emitted event to all steps and runs until a stop event arrives.
//
// This file provides re-exports for the most commonly used types and
// constructors from the workflow subpackage, so simple programs need a single
// import:
//
//	import "github.com/seam-labs/eventflow"
//
// Richer integrations (record persistence, tracing, scheduling) import the
// subpackages directly.
package eventflow

import (
	"context"

	"github.com/seam-labs/eventflow/workflow"
)

// Type aliases from the workflow package
type (
	// Event is an immutable, typed message broadcast between steps.
	Event = workflow.Event

	// EventType identifies an event variant.
	EventType = workflow.EventType

	// StartEvent carries the initial invocation arguments for a run.
	StartEvent = workflow.StartEvent

	// StopEvent ends a run and carries its result.
	StopEvent = workflow.StopEvent

	// GenericEvent is a convenience Event carrying a free-form payload.
	GenericEvent = workflow.GenericEvent

	// Step is a named unit of behavior with its event-type declaration.
	Step = workflow.Step

	// Handler is a step's behavior.
	Handler = workflow.Handler

	// Builder assembles a workflow's step table.
	Builder = workflow.Builder

	// Workflow is a runnable table of steps.
	Workflow = workflow.Workflow

	// Option configures a workflow at construction time.
	Option = workflow.Option

	// Record is a structured account of what happened during execution.
	Record = workflow.Record

	// Monitor receives records during execution.
	Monitor = workflow.Monitor

	// TraceEntry records one handler invocation of a run.
	TraceEntry = workflow.TraceEntry
)

// Distinguished event types
const (
	StartEventType = workflow.StartEventType
	StopEventType  = workflow.StopEventType
	NoEvent        = workflow.NoEvent
)

// DefaultTimeout bounds Run's wait for the runners to finish.
const DefaultTimeout = workflow.DefaultTimeout

// Workflow package errors
var (
	ErrAlreadyRunning = workflow.ErrAlreadyRunning
	ErrRunCanceled    = workflow.ErrRunCanceled
)

// Workflow package constructors and options
var (
	New                    = workflow.New
	NewBuilder             = workflow.NewBuilder
	NewGenericEvent        = workflow.NewGenericEvent
	MultiMonitor           = workflow.MultiMonitor
	Validate               = workflow.Validate
	WithTimeout            = workflow.WithTimeout
	WithValidationDisabled = workflow.WithValidationDisabled
	WithVerbose            = workflow.WithVerbose
	WithLogger             = workflow.WithLogger
	WithMonitor            = workflow.WithMonitor
	WithPublisher          = workflow.WithPublisher
)

// Run is a convenience function that builds a workflow from the given steps
// and runs it to completion with default options.
func Run(ctx context.Context, steps []Step, params map[string]any) (any, error) {
	wf, err := New(steps)
	if err != nil {
		return nil, err
	}
	return wf.Run(ctx, params)
}
