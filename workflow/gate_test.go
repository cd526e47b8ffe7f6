package workflow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitForParked(t *testing.T, g *gate, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		parked := g.waiting
		g.mu.Unlock()
		if parked >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("never saw %d parked runners", n)
}

func TestGate_AdvanceReleasesParkedRunners(t *testing.T) {
	g := newGate()
	released := make(chan uint64, 3)

	for i := 0; i < 3; i++ {
		go func() {
			gen, ok := g.Wait(0)
			if !ok {
				return
			}
			released <- gen
			g.Done()
		}()
	}
	waitForParked(t, g, 3)

	if wave := g.Advance(); wave != 3 {
		t.Fatalf("Advance = %d, want 3", wave)
	}
	for i := 0; i < 3; i++ {
		select {
		case gen := <-released:
			if gen != 1 {
				t.Errorf("released into generation %d, want 1", gen)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("runner not released by Advance")
		}
	}

	g.Settle(context.Background())
}

func TestGate_AtMostOncePerAdvance(t *testing.T) {
	g := newGate()
	var runs atomic.Int64

	go func() {
		var last uint64
		for {
			gen, ok := g.Wait(last)
			if !ok {
				return
			}
			last = gen
			runs.Add(1)
			g.Done()
		}
	}()
	defer g.Close()
	waitForParked(t, g, 1)

	g.Advance()
	g.Settle(context.Background())
	waitForParked(t, g, 1)
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs after one advance = %d, want 1", got)
	}

	g.Advance()
	g.Settle(context.Background())
	waitForParked(t, g, 1)
	if got := runs.Load(); got != 2 {
		t.Fatalf("runs after two advances = %d, want 2", got)
	}
}

func TestGate_CloseReleasesWaiters(t *testing.T) {
	g := newGate()
	done := make(chan bool, 1)
	go func() {
		_, ok := g.Wait(0)
		done <- ok
	}()
	waitForParked(t, g, 1)

	g.Close()
	select {
	case ok := <-done:
		if ok {
			t.Error("Wait reported ok after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Close")
	}

	if g.WaitParked(context.Background()) {
		t.Error("WaitParked reported a parked runner on a closed gate")
	}
}

func TestGate_WaitParkedSeesLateArrival(t *testing.T) {
	g := newGate()
	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Wait(0)
	}()
	defer g.Close()

	if !g.WaitParked(context.Background()) {
		t.Fatal("WaitParked = false, want true")
	}
}

func TestGate_SettleHonorsContext(t *testing.T) {
	g := newGate()
	block := make(chan struct{})
	go func() {
		// Released but never calls Done until told to.
		g.Wait(0)
		<-block
		g.Done()
	}()
	waitForParked(t, g, 1)
	g.Advance()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	settled := make(chan struct{})
	go func() {
		g.Settle(ctx)
		close(settled)
	}()

	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatal("Settle ignored context cancellation")
	}
	close(block)
}
