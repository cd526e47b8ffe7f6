package bus

import (
	"sync"

	"github.com/seam-labs/eventflow/workflow"
)

// MemBusConfig configures an in-memory record bus.
type MemBusConfig struct {
	// SubscriberBufferSize is the channel buffer size per subscriber (default: 256).
	SubscriberBufferSize int
}

// MemBus is an in-memory record bus implementation. Delivery never blocks
// the publisher: each subscriber owns a buffered channel and records beyond
// its capacity are dropped for that subscriber only.
type MemBus struct {
	mu         sync.RWMutex
	runSubs    map[string][]*memSub // runID -> subscribers
	globalSubs []*memSub            // subscribers across all runs
	bufSize    int
	closed     bool
}

// NewMemBus creates a new in-memory record bus with the given configuration.
func NewMemBus(config MemBusConfig) *MemBus {
	bufSize := config.SubscriberBufferSize
	if bufSize <= 0 {
		bufSize = 256
	}
	return &MemBus{
		runSubs: make(map[string][]*memSub),
		bufSize: bufSize,
	}
}

// Publish sends a record to all matching subscribers: those registered for
// the record's run and those registered across all runs, each further
// narrowed by its own kind filter. Publishing to a closed bus is a no-op.
func (b *MemBus) Publish(r workflow.Record) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.runSubs[r.RunID] {
		sub.send(r)
	}
	for _, sub := range b.globalSubs {
		sub.send(r)
	}
}

// Subscribe registers a subscriber for every record of a specific run.
// Returns a Subscription that must be closed when done.
func (b *MemBus) Subscribe(runID string) Subscription {
	return b.register(runID, false, nil)
}

// SubscribeAll registers a subscriber that receives every record from all
// runs. Returns a Subscription that must be closed when done.
func (b *MemBus) SubscribeAll() Subscription {
	return b.register("", true, nil)
}

// SubscribeKinds registers a subscriber that receives only records of the
// given kinds. An empty runID subscribes across all runs; an empty kind
// list matches nothing. Returns a Subscription that must be closed when
// done.
func (b *MemBus) SubscribeKinds(runID string, kinds ...workflow.RecordKind) Subscription {
	wanted := make(map[workflow.RecordKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}
	return b.register(runID, runID == "", wanted)
}

// register adds a subscriber to the run-scoped or global list. A nil kinds
// map means every kind.
func (b *MemBus) register(runID string, global bool, kinds map[workflow.RecordKind]bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newMemSub(b.bufSize, kinds)
	if global {
		b.globalSubs = append(b.globalSubs, sub)
	} else {
		b.runSubs[runID] = append(b.runSubs[runID], sub)
	}
	return sub
}

// Close shuts down the bus and all active subscriptions.
func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	for _, subs := range b.runSubs {
		for _, sub := range subs {
			sub.close()
		}
	}
	for _, sub := range b.globalSubs {
		sub.close()
	}

	return nil
}

// memSub is an in-memory subscription, optionally narrowed to a kind set.
type memSub struct {
	ch     chan workflow.Record
	kinds  map[workflow.RecordKind]bool // nil means every kind
	mu     sync.Mutex
	closed bool
}

func newMemSub(bufSize int, kinds map[workflow.RecordKind]bool) *memSub {
	return &memSub{
		ch:    make(chan workflow.Record, bufSize),
		kinds: kinds,
	}
}

// Records returns a channel of records for this subscription.
func (s *memSub) Records() <-chan workflow.Record {
	return s.ch
}

// Close unsubscribes and releases resources.
func (s *memSub) Close() error {
	s.close()
	return nil
}

// close performs the actual channel close, guarded against double-close.
func (s *memSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers a record to the subscription's channel. Records outside the
// kind filter are skipped; when the channel is full or the subscription is
// closed the record is dropped.
func (s *memSub) send(r workflow.Record) {
	if s.kinds != nil && !s.kinds[r.Kind] {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- r:
	default:
		// Drop if channel full.
	}
}

// Compile-time interface checks.
var _ RecordBus = (*MemBus)(nil)
var _ Subscription = (*memSub)(nil)
var _ workflow.RecordPublisher = (*MemBus)(nil)
