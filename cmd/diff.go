package main

import (
	"context"

	"github.com/desertthunder/crmigrate/internal/formatter"
	"github.com/desertthunder/crmigrate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Diff shows what an import into the selected profile would create, without
// writing anything.
func (r *Runner) Diff(ctx context.Context, cmd *cli.Command) error {
	session, err := r.openSession(ctx, cmd.String("email"), cmd.String("password"), cmd.String("profile"))
	if err != nil {
		return err
	}

	imp := tasks.NewImporter(r.config, session, tasks.ImporterLogger(r.logger))
	reports, err := imp.Diff(ctx, cmd.String("input"))
	if err != nil {
		return err
	}

	return r.writeData(formatter.DiffToText(reports))
}

func diffCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Compare a snapshot directory against a profile without writing",
		Flags: append(credentialFlags(),
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Directory holding snapshot files",
				Value:   "exports",
			},
		),
		Action: r.Diff,
	}
}
