package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/services"
	"github.com/desertthunder/crmigrate/internal/shared"
	"golang.org/x/time/rate"
)

// WriteOutcome is the terminal result of one item's write.
type WriteOutcome int

const (
	OutcomeCreated WriteOutcome = iota
	OutcomeAlreadyPresent
	OutcomeSkipped
	OutcomeFailed

	// outcomeAborted marks items cut off by cancellation before reaching a
	// terminal state. They are not counted and emit no event.
	outcomeAborted WriteOutcome = -1
)

func (o WriteOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyPresent:
		return "already_present"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return ""
	}
}

// Failure records one item that reached a terminal failure, with the
// classification reason so the caller can report or retry later.
type Failure struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// RunSummary is the full accounting of one data type's run. A run always
// completes with every processed item's fate recorded, even when some
// items failed.
type RunSummary struct {
	DataType       models.DataType
	Total          int
	Created        int
	AlreadyPresent int
	Skipped        int
	Failed         int
	Failures       []Failure
	Interrupted    bool
}

// Processed returns the number of items that reached a terminal state.
func (s *RunSummary) Processed() int {
	return s.Created + s.AlreadyPresent + s.Skipped + s.Failed
}

// Engine drives missing items to completion against a remote collection.
// Per-item state machine: Pending -> InFlight -> {Created, AlreadyPresent,
// Failed}, with transient failures looping back to Pending until the
// attempt budget runs out.
type Engine struct {
	tuning shared.SyncTuning
	gate   *BlockGate
	guard  *keyGuard
	logger *log.Logger
	events chan<- Event
	dryRun bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEvents attaches a progress event channel. The channel should be
// buffered; the engine drops events rather than blocking on a slow consumer.
func WithEvents(ch chan<- Event) EngineOption {
	return func(e *Engine) { e.events = ch }
}

// WithLogger replaces the default stderr logger.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithDryRun makes the engine classify and count without invoking Create.
func WithDryRun(dryRun bool) EngineOption {
	return func(e *Engine) { e.dryRun = dryRun }
}

// WithGate shares a block gate across engines. An account-level block
// applies to every data type, so the importer passes one gate to all runs.
func WithGate(g *BlockGate) EngineOption {
	return func(e *Engine) { e.gate = g }
}

// NewEngine builds an engine with the given write tuning.
func NewEngine(tuning shared.SyncTuning, opts ...EngineOption) *Engine {
	e := &Engine{
		tuning: tuning,
		guard:  newKeyGuard(),
		logger: shared.NewLogger(os.Stderr),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.gate == nil {
		e.gate = NewBlockGate()
	}
	return e
}

// Run drives the Missing set of a diff to completion. Individual item
// failures never fail the run; the summary carries their fates. On
// cancellation the partial summary is returned together with ctx.Err().
func Run[T models.Item](ctx context.Context, e *Engine, dataType models.DataType, diff *DiffResult[T], col services.Collection[T]) (*RunSummary, error) {
	summary := &RunSummary{
		DataType:       dataType,
		Total:          diff.Total(),
		AlreadyPresent: len(diff.Present),
	}

	for _, key := range diff.DuplicateKeys {
		e.logger.Warn("target returned duplicate identity key, first occurrence wins",
			"type", dataType.String(), "key", key)
	}

	e.sendEvent(Event{Kind: RunStarted, DataType: dataType, Total: len(diff.Missing)})

	if e.dryRun {
		for _, item := range diff.Missing {
			summary.Skipped++
			e.sendEvent(Event{
				Kind: ItemProcessed, DataType: dataType,
				Key: item.Key(), Label: item.Label(), Outcome: OutcomeSkipped,
			})
		}
		e.sendEvent(Event{Kind: RunFinished, DataType: dataType, Summary: summary})
		return summary, nil
	}

	concurrency := e.tuning.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	limit := rate.Inf
	if delay := e.tuning.MinDelay(); delay > 0 {
		limit = rate.Every(delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	type outcomeMsg struct {
		item    T
		outcome WriteOutcome
		reason  string
	}

	jobs := make(chan T)
	results := make(chan outcomeMsg, len(diff.Missing))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				outcome, reason := writeOne(ctx, e, limiter, col, item)
				results <- outcomeMsg{item: item, outcome: outcome, reason: reason}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, item := range diff.Missing {
			select {
			case <-ctx.Done():
				return
			case jobs <- item:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for msg := range results {
		if msg.outcome == outcomeAborted {
			continue
		}
		switch msg.outcome {
		case OutcomeCreated:
			summary.Created++
		case OutcomeAlreadyPresent:
			summary.AlreadyPresent++
		case OutcomeFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{
				Key: msg.item.Key(), Label: msg.item.Label(), Reason: msg.reason,
			})
		}
		e.sendEvent(Event{
			Kind: ItemProcessed, DataType: dataType,
			Key: msg.item.Key(), Label: msg.item.Label(),
			Outcome: msg.outcome, Reason: msg.reason,
		})
	}

	if ctx.Err() != nil {
		summary.Interrupted = true
		e.sendEvent(Event{Kind: RunFinished, DataType: dataType, Summary: summary})
		return summary, ctx.Err()
	}

	e.sendEvent(Event{Kind: RunFinished, DataType: dataType, Summary: summary})
	return summary, nil
}

// writeOne takes one item through the retry state machine to a terminal
// outcome. The identity-key guard means no two in-flight requests ever
// share a key; the block gate and limiter are checked before every attempt,
// retries included.
func writeOne[T models.Item](ctx context.Context, e *Engine, limiter *rate.Limiter, col services.Collection[T], item T) (WriteOutcome, string) {
	key := item.Key()
	e.guard.Acquire(key)
	defer e.guard.Release(key)

	maxAttempts := e.tuning.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	for attempt := 1; ; attempt++ {
		if err := e.gate.Wait(ctx); err != nil {
			return outcomeAborted, ""
		}
		if err := limiter.Wait(ctx); err != nil {
			return outcomeAborted, ""
		}

		err := col.Create(ctx, item)
		switch Classify(err) {
		case ClassNone:
			return OutcomeCreated, ""
		case ClassDuplicate:
			return OutcomeAlreadyPresent, ""
		case ClassBlocked:
			if attempt >= maxAttempts {
				return OutcomeFailed, fmt.Sprintf("blocked: %v", err)
			}
			pause := e.tuning.BlockPause()
			e.logger.Warn("service block detected, pausing all writes",
				"key", key, "pause", pause)
			e.gate.Trip(pause)
		case ClassTransient:
			if attempt >= maxAttempts {
				return OutcomeFailed, fmt.Sprintf("retries exhausted: %v", err)
			}
			if sleepErr := sleepCtx(ctx, e.backoff(attempt)); sleepErr != nil {
				return outcomeAborted, ""
			}
		default:
			if ctx.Err() != nil {
				return outcomeAborted, ""
			}
			return OutcomeFailed, err.Error()
		}
	}
}

// backoff computes the delay before retry attempt+1: base doubled per
// attempt, capped, with up to 25% jitter to avoid thundering-herd retries.
func (e *Engine) backoff(attempt int) time.Duration {
	base := e.tuning.BaseBackoff()
	if base <= 0 {
		base = 2 * time.Second
	}
	maxDelay := e.tuning.MaxBackoff()
	if maxDelay <= 0 {
		maxDelay = 32 * time.Second
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			break
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	if quarter := delay / 4; quarter > 0 {
		delay += rand.N(quarter)
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
