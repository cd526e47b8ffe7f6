// Package bus provides a record distribution system for workflow execution.
// It allows components to publish and subscribe to execution records,
// enabling decoupled communication between the engine and observers such as
// loggers, CLIs, and monitoring systems.
package bus

import "github.com/seam-labs/eventflow/workflow"

// RecordBus distributes execution records to subscribers.
type RecordBus interface {
	// Publish sends a record to all matching subscribers.
	Publish(r workflow.Record)

	// Subscribe registers a subscriber for a specific run.
	// Returns a Subscription that must be closed when done.
	Subscribe(runID string) Subscription

	// SubscribeAll registers a subscriber that receives records from all
	// runs. Returns a Subscription that must be closed when done.
	SubscribeAll() Subscription

	// SubscribeKinds registers a subscriber that receives only records of
	// the given kinds. An empty runID subscribes across all runs. Returns
	// a Subscription that must be closed when done.
	SubscribeKinds(runID string, kinds ...workflow.RecordKind) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives records.
type Subscription interface {
	// Records returns a channel of records for this subscription.
	Records() <-chan workflow.Record

	// Close unsubscribes and releases resources.
	Close() error
}
