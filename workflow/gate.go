package workflow

import (
	"context"
	"sync"
)

// gate serializes stepwise execution into waves. Advance bumps a shared
// generation counter and grants a release quota equal to the number of
// runners parked at that moment; a parked runner passes the gate by taking
// one quota slot for a generation newer than the last one it served. A
// runner therefore executes at most once per advance, and events produced
// inside a wave park their consumers for the next wave instead of cascading.
// Which runners make up a wave when several become eligible together is
// deliberately unspecified.
type gate struct {
	mu   sync.Mutex
	cond *sync.Cond

	gen      uint64
	waiting  int // runners parked in Wait
	quota    int // releases remaining for the current generation
	inflight int // released runners still executing their invocation
	closed   bool
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Wait parks the runner until it is released into a generation newer than
// last, or the gate is closed. On release it returns the served generation
// and true; the runner must call Done once its invocation completes.
func (g *gate) Wait(last uint64) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.waiting++
	g.cond.Broadcast() // a parked runner may unblock WaitParked
	for !(g.gen > last && g.quota > 0) && !g.closed {
		g.cond.Wait()
	}
	g.waiting--

	if g.closed {
		g.cond.Broadcast()
		return 0, false
	}

	g.quota--
	g.inflight++
	return g.gen, true
}

// Done marks a released runner's invocation as finished.
func (g *gate) Done() {
	g.mu.Lock()
	g.inflight--
	g.cond.Broadcast()
	g.mu.Unlock()
}

// Advance opens the next wave: the release quota is the number of runners
// parked right now. It returns that wave size, which may be zero.
func (g *gate) Advance() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gen++
	g.quota = g.waiting
	g.cond.Broadcast()
	return g.quota
}

// WaitParked blocks until at least one runner is parked at the gate,
// reporting true, or until the gate closes or ctx is done, reporting false.
func (g *gate) WaitParked(ctx context.Context) bool {
	stop := make(chan struct{})
	defer close(stop)
	go g.wakeOnDone(ctx, stop)

	g.mu.Lock()
	defer g.mu.Unlock()

	for g.waiting == 0 && !g.closed && ctx.Err() == nil {
		g.cond.Wait()
	}
	return g.waiting > 0 && !g.closed
}

// Settle blocks until the current wave has fully executed: no quota left
// unclaimed and no released runner still in flight. It also returns when
// the gate closes or ctx is done.
func (g *gate) Settle(ctx context.Context) {
	stop := make(chan struct{})
	defer close(stop)
	go g.wakeOnDone(ctx, stop)

	g.mu.Lock()
	defer g.mu.Unlock()

	for (g.quota > 0 || g.inflight > 0) && !g.closed && ctx.Err() == nil {
		g.cond.Wait()
	}
}

// Close releases every parked runner with a failure result. Used on
// cancellation so gate waits are suspension points like any other.
func (g *gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.cond.Broadcast()
	g.mu.Unlock()
}

// wakeOnDone broadcasts when ctx ends so condition waits can observe it.
func (g *gate) wakeOnDone(ctx context.Context, stop <-chan struct{}) {
	select {
	case <-ctx.Done():
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	case <-stop:
	}
}
