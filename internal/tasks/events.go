package tasks

import (
	"github.com/desertthunder/crmigrate/internal/models"
)

// EventKind discriminates progress events.
type EventKind int

const (
	// RunStarted announces a data type's run with the count of items it
	// will write.
	RunStarted EventKind = iota
	// ItemProcessed reports one item's terminal outcome. Emitted exactly
	// once per item, never per retry attempt, so consumer counts stay
	// monotonic.
	ItemProcessed
	// RunFinished carries the complete summary for a data type.
	RunFinished
)

// Event is one discrete progress update flowing from the engine to a
// presentation layer (dashboard or plain logger).
type Event struct {
	Kind     EventKind
	DataType models.DataType

	// Total on RunStarted is the number of items the run will write, so a
	// progress bar sized against it can reach 100%. The RunFinished summary
	// carries the full accounting including items already on the target.
	Total int

	// ItemProcessed fields
	Key     string
	Label   string
	Outcome WriteOutcome
	Reason  string

	// RunFinished payload
	Summary *RunSummary
}

// sendEvent delivers an event without ever stalling the write path. A full
// consumer buffer drops the event with a warning; the run summary stays
// authoritative regardless.
func (e *Engine) sendEvent(ev Event) {
	if e.events == nil {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("dropping progress event, consumer is lagging",
			"kind", ev.Kind, "type", ev.DataType.String())
	}
}
