package bus

import (
	"sync"
	"time"

	"github.com/seam-labs/eventflow/workflow"
)

// ThrottleConfig controls the behavior of ThrottledMonitor.
type ThrottleConfig struct {
	// CoalesceInterval is how often to flush coalesced broadcast records.
	// Default: 100ms
	CoalesceInterval time.Duration
}

// ThrottledMonitor wraps a workflow.Monitor and coalesces high-frequency
// event.broadcast records. Other record kinds pass through immediately.
// Broadcast records are coalesced per event type: only the latest record for
// each type is kept within each coalesce interval. A background ticker
// flushes coalesced records at the configured interval.
type ThrottledMonitor struct {
	forward  workflow.Monitor
	interval time.Duration

	mu      sync.Mutex
	pending map[workflow.EventType]workflow.Record // event type -> latest broadcast record
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewThrottledMonitor creates a new ThrottledMonitor that wraps the given
// monitor and coalesces event.broadcast records at the configured interval.
func NewThrottledMonitor(forward workflow.Monitor, cfg ThrottleConfig) *ThrottledMonitor {
	interval := cfg.CoalesceInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	tm := &ThrottledMonitor{
		forward:  forward,
		interval: interval,
		pending:  make(map[workflow.EventType]workflow.Record),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go tm.run()

	return tm
}

// Handle feeds a record through the throttled monitor. Non-broadcast records
// pass through immediately to the wrapped monitor. Broadcast records
// (RecordEventBroadcast) are coalesced: only the latest record per event type
// is kept and flushed at the configured interval.
func (tm *ThrottledMonitor) Handle(r workflow.Record) {
	if r.Kind != workflow.RecordEventBroadcast {
		// Non-broadcast records pass through immediately.
		tm.forward(r)
		return
	}

	// Broadcast records are coalesced per event type.
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.closed {
		return
	}

	tm.pending[r.EventType] = r
}

// Close flushes any pending broadcast records and stops the background
// ticker. It is safe to call Close multiple times.
func (tm *ThrottledMonitor) Close() {
	tm.mu.Lock()
	if tm.closed {
		tm.mu.Unlock()
		return
	}
	tm.closed = true
	tm.mu.Unlock()

	// Signal the background goroutine to stop.
	close(tm.stopCh)

	// Wait for the background goroutine to finish.
	<-tm.doneCh
}

// run is the background goroutine that periodically flushes coalesced records.
func (tm *ThrottledMonitor) run() {
	defer close(tm.doneCh)

	ticker := time.NewTicker(tm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tm.flush()
		case <-tm.stopCh:
			// Flush any remaining pending records before exiting.
			tm.flush()
			return
		}
	}
}

// flush sends all pending coalesced records to the wrapped monitor
// and clears the pending map.
func (tm *ThrottledMonitor) flush() {
	tm.mu.Lock()
	if len(tm.pending) == 0 {
		tm.mu.Unlock()
		return
	}

	// Swap out the pending map so we can release the lock during forwarding.
	toFlush := tm.pending
	tm.pending = make(map[workflow.EventType]workflow.Record)
	tm.mu.Unlock()

	for _, r := range toFlush {
		tm.forward(r)
	}
}
