package ui

import (
	"github.com/charmbracelet/log"
	"github.com/desertthunder/crmigrate/internal/tasks"
)

// Plain consumes the same event stream as the dashboard and logs one line
// per event. Used when stdout is not a terminal (pipes, CI).
func Plain(events <-chan tasks.Event, logger *log.Logger) {
	for ev := range events {
		switch ev.Kind {
		case tasks.RunStarted:
			logger.Info("starting", "type", ev.DataType.String(), "total", ev.Total)

		case tasks.ItemProcessed:
			switch ev.Outcome {
			case tasks.OutcomeCreated:
				logger.Info("added", "type", ev.DataType.String(), "item", ev.Label)
			case tasks.OutcomeAlreadyPresent:
				logger.Debug("already there", "type", ev.DataType.String(), "item", ev.Label)
			case tasks.OutcomeSkipped:
				logger.Info("skipped", "type", ev.DataType.String(), "item", ev.Label)
			case tasks.OutcomeFailed:
				logger.Error("failed", "type", ev.DataType.String(), "item", ev.Label, "reason", ev.Reason)
			}

		case tasks.RunFinished:
			if ev.Summary == nil {
				continue
			}
			logger.Info("finished", "type", ev.DataType.String(),
				"added", ev.Summary.Created,
				"already_there", ev.Summary.AlreadyPresent,
				"failed", ev.Summary.Failed)
		}
	}
}
