package tasks

import (
	"context"
	"sync"
	"time"
)

// BlockGate is the process-wide pause applied when the service blocks the
// session. Every worker passes through Wait before issuing a request, so
// the invariant "no requests in flight during the pause window" is enforced
// in one place instead of per-worker sleeps.
type BlockGate struct {
	mu    sync.Mutex
	until time.Time
}

func NewBlockGate() *BlockGate { return &BlockGate{} }

// Trip extends the pause window to now+d. Concurrent trips never shorten
// an already-open window.
func (g *BlockGate) Trip(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if deadline := time.Now().Add(d); deadline.After(g.until) {
		g.until = deadline
	}
}

// Wait blocks until the gate is open or the context is cancelled. The
// window is re-read after each sleep in case another worker tripped the
// gate again while this one waited.
func (g *BlockGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		remaining := time.Until(g.until)
		g.mu.Unlock()

		if remaining <= 0 {
			return nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// keyGuard serializes writes per identity key. The diff already collapses
// duplicate source keys, so contention here means a caller bug; the guard
// still blocks rather than racing.
type keyGuard struct {
	mu   sync.Mutex
	cond *sync.Cond
	held map[string]struct{}
}

func newKeyGuard() *keyGuard {
	g := &keyGuard{held: make(map[string]struct{})}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *keyGuard) Acquire(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		if _, taken := g.held[key]; !taken {
			g.held[key] = struct{}{}
			return
		}
		g.cond.Wait()
	}
}

func (g *keyGuard) Release(key string) {
	g.mu.Lock()
	delete(g.held, key)
	g.mu.Unlock()
	g.cond.Broadcast()
}
