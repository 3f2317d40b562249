package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crmigrate/internal/formatter"
	"github.com/urfave/cli/v3"
)

// Runs lists recorded runs from the journal, newest first.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	repo, db, err := r.openJournal()
	if err != nil {
		return err
	}
	if repo == nil {
		return fmt.Errorf("no journal database configured")
	}
	defer db.Close()

	recs, err := repo.List(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	return r.writeData(formatter.RunsToText(recs))
}

func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded export and import runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to show (0 for all)",
				Value:   20,
			},
		},
		Action: r.Runs,
	}
}
