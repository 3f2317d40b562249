package main

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crmigrate/internal/formatter"
	"github.com/desertthunder/crmigrate/internal/services"
	"github.com/desertthunder/crmigrate/internal/tasks"
	"github.com/desertthunder/crmigrate/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// Import replays a snapshot directory into the selected profile.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	inputDir := cmd.String("input")
	dryRun := cmd.Bool("dry-run")

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

	var j tasks.Journal
	if journal != nil {
		j = journal
	}
	result, elapsed, err := r.runImport(ctx, session, j, inputDir, dryRun, cmd.Bool("plain"))
	if result != nil && len(result.Results) > 0 {
		r.writeData(formatter.SummaryToText(result, elapsed))

		report, reportErr := formatter.WriteFailureReport(result, cmd.String("report"))
		if reportErr != nil {
			r.logger.Warn("failed to write failure report", "error", reportErr)
		} else if report != nil {
			r.writePlain("Failure report: %s, %s\n", report.CSVFile, report.JSONFile)
		}
	}
	return err
}

// runImport drives the importer with either the live dashboard or plain
// logging, depending on the terminal.
func (r *Runner) runImport(ctx context.Context, session *services.Session, journal tasks.Journal, inputDir string, dryRun, forcePlain bool) (*tasks.ImportResult, time.Duration, error) {
	events := make(chan tasks.Event, 256)

	opts := []tasks.ImporterOption{
		tasks.ImporterEvents(events),
		tasks.ImporterLogger(r.logger),
		tasks.ImporterDryRun(dryRun),
	}
	if journal != nil {
		opts = append(opts, tasks.ImporterJournal(journal))
	}
	imp := tasks.NewImporter(r.config, session, opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		result *tasks.ImportResult
		runErr error
	)
	started := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		result, runErr = imp.Run(ctx, inputDir)
	}()

	if !forcePlain && isatty.IsTerminal(os.Stdout.Fd()) {
		program := tea.NewProgram(ui.NewModel(events, cancel))
		if _, err := program.Run(); err != nil {
			r.logger.Warn("dashboard failed, falling back to logs", "error", err)
			ui.Plain(events, r.logger)
		}
	} else {
		ui.Plain(events, r.logger)
	}

	<-done
	return result, time.Since(started), runErr
}

func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Replay a snapshot directory into a profile",
		Flags: append(credentialFlags(),
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Directory holding snapshot files",
				Value:   "exports",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Diff and report without writing anything",
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Log progress line by line instead of the dashboard",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Base path for the failed-item report files",
				Value: "import",
			},
		),
		Action: r.Import,
	}
}
