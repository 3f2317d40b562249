package tasks

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestGateOpenByDefault(t *testing.T) {
	g := NewBlockGate()
	done := make(chan struct{})
	go func() {
		if err := g.Wait(context.Background()); err != nil {
			t.Errorf("Wait() error = %v", err)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("open gate blocked")
	}
}

func TestGateHoldsAllWaiters(t *testing.T) {
	g := NewBlockGate()
	g.Trip(80 * time.Millisecond)
	deadline := time.Now().Add(80 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Wait(context.Background()); err != nil {
				t.Errorf("Wait() error = %v", err)
				return
			}
			if time.Now().Before(deadline) {
				t.Error("waiter released before the pause window closed")
			}
		}()
	}
	wg.Wait()
}

func TestGateTripNeverShortensWindow(t *testing.T) {
	g := NewBlockGate()
	g.Trip(100 * time.Millisecond)
	deadline := time.Now().Add(100 * time.Millisecond)
	g.Trip(10 * time.Millisecond)

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if time.Now().Before(deadline) {
		t.Error("second shorter trip shortened the window")
	}
}

func TestGateWaitRespectsCancellation(t *testing.T) {
	g := NewBlockGate()
	g.Trip(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Wait(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Wait() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after cancellation")
	}
}

func TestKeyGuardSerializesSameKey(t *testing.T) {
	g := newKeyGuard()

	g.Acquire("x")
	acquired := make(chan struct{})
	go func() {
		g.Acquire("x")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while key was held")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release("x")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquire did not proceed after release")
	}
	g.Release("x")
}

func TestKeyGuardIndependentKeys(t *testing.T) {
	g := newKeyGuard()
	g.Acquire("a")
	done := make(chan struct{})
	go func() {
		g.Acquire("b")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different key blocked")
	}
	g.Release("a")
	g.Release("b")
}
