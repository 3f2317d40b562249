package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crmigrate/internal/formatter"
	"github.com/desertthunder/crmigrate/internal/services"
	"github.com/desertthunder/crmigrate/internal/shared"
	"github.com/desertthunder/crmigrate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Migrate runs the full pipeline: export the source profile, diff against
// the target, confirm, then import.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	fromName := cmd.String("from")
	toName := cmd.String("to")
	dir := cmd.String("dir")

	session := services.NewSession(r.config, r.transport)
	if err := session.Login(ctx, cmd.String("email"), cmd.String("password")); err != nil {
		return err
	}

	profiles, err := session.Profiles(ctx)
	if err != nil {
		return err
	}
	source, err := services.FindProfile(profiles, fromName)
	if err != nil {
		return err
	}
	target, err := services.FindProfile(profiles, toName)
	if err != nil {
		return err
	}
	if source.ProfileID == target.ProfileID {
		return fmt.Errorf("%w: source and target are the same profile", shared.ErrInvalidArgument)
	}

	journal, db, err := r.openJournal()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	r.writePlain("Exporting profile %q...\n", source.ProfileName)
	if err := session.SwitchProfile(ctx, source); err != nil {
		return err
	}
	opts := []tasks.ExporterOption{tasks.ExporterLogger(r.logger)}
	if journal != nil {
		opts = append(opts, tasks.ExporterJournal(journal))
	}
	if err := tasks.NewExporter(r.config, session, opts...).Run(ctx, dir); err != nil {
		return err
	}

	if err := session.SwitchProfile(ctx, target); err != nil {
		return err
	}

	imp := tasks.NewImporter(r.config, session, tasks.ImporterLogger(r.logger))
	reports, err := imp.Diff(ctx, dir)
	if err != nil {
		return err
	}
	r.writeData(formatter.DiffToText(reports))

	missing := 0
	for _, rep := range reports {
		missing += rep.Missing
	}
	if missing == 0 {
		r.writePlain("Profile %q already has everything. Nothing to do.\n", target.ProfileName)
		return nil
	}

	if !cmd.Bool("yes") {
		if !r.confirm(fmt.Sprintf("Import %d items into profile %q?", missing, target.ProfileName)) {
			r.writePlain("Aborted.\n")
			return nil
		}
	}

	var j tasks.Journal
	if journal != nil {
		j = journal
	}
	result, elapsed, err := r.runImport(ctx, session, j, dir, cmd.Bool("dry-run"), cmd.Bool("plain"))
	if result != nil && len(result.Results) > 0 {
		r.writeData(formatter.SummaryToText(result, elapsed))
		if report, reportErr := formatter.WriteFailureReport(result, "migrate"); reportErr == nil && report != nil {
			r.writePlain("Failure report: %s, %s\n", report.CSVFile, report.JSONFile)
		}
	}
	return err
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Export one profile, then import it into another",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Account email (overrides config)"},
			&cli.StringFlag{Name: "password", Usage: "Account password (overrides config)"},
			&cli.StringFlag{Name: "from", Usage: "Source profile name", Required: true},
			&cli.StringFlag{Name: "to", Usage: "Target profile name", Required: true},
			&cli.StringFlag{Name: "dir", Usage: "Snapshot directory", Value: "exports"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Stop after the diff, write nothing"},
			&cli.BoolFlag{Name: "plain", Usage: "Log progress line by line instead of the dashboard"},
		},
		Action: r.Migrate,
	}
}
