package main

import (
	"context"
	"time"

	"github.com/desertthunder/crmigrate/internal/shared"
	"github.com/desertthunder/crmigrate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export takes a full snapshot of the selected profile's data.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	outputDir := cmd.String("output")
	if outputDir == "" {
		outputDir = r.config.Export.Dir
	}
	if outputDir == "" {
		outputDir = "exports"
	}

	session, err := r.openSession(ctx, cmd.String("email"), cmd.String("password"), cmd.String("profile"))
	if err != nil {
		return err
	}

	journal, db, err := r.openJournal()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	opts := []tasks.ExporterOption{tasks.ExporterLogger(r.logger)}
	if journal != nil {
		opts = append(opts, tasks.ExporterJournal(journal))
	}
	exp := tasks.NewExporter(r.config, session, opts...)

	started := time.Now()
	if err := exp.Run(ctx, outputDir); err != nil {
		return err
	}

	r.writePlain("Exported profile %q to %s in %s\n",
		session.ActiveProfile.ProfileName, outputDir, shared.FormatDuration(time.Since(started)))
	return nil
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Snapshot a profile's watchlist, history, lists, and ratings to JSON files",
		Flags: append(credentialFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory to write snapshot files to",
			},
		),
		Action: r.Export,
	}
}
