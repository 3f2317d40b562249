package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crmigrate/internal/repositories"
	"github.com/desertthunder/crmigrate/internal/services"
	"github.com/desertthunder/crmigrate/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config    *shared.Config
	logger    *log.Logger
	output    io.Writer
	input     io.Reader
	transport http.RoundTripper
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config    *shared.Config
	Logger    *log.Logger
	Output    io.Writer
	Input     io.Reader
	Transport http.RoundTripper
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:    opts.Config,
		logger:    opts.Logger,
		output:    opts.Output,
		input:     opts.Input,
		transport: opts.Transport,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, statusCommand, exportCommand, importCommand, diffCommand, migrateCommand, renameProfileCommand, createProfileCommand, runsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openSession logs in and scopes the session to the named profile. An empty
// name falls back to the configured profile, then to the account's primary.
func (r *Runner) openSession(ctx context.Context, email, password, profileName string) (*services.Session, error) {
	session := services.NewSession(r.config, r.transport)
	if err := session.Login(ctx, email, password); err != nil {
		return nil, err
	}

	profiles, err := session.Profiles(ctx)
	if err != nil {
		return nil, err
	}

	if profileName == "" {
		profileName = r.config.Credentials.Profile
	}

	var profile *services.Profile
	if profileName != "" {
		if profile, err = services.FindProfile(profiles, profileName); err != nil {
			return nil, err
		}
	} else {
		for i := range profiles {
			if profiles[i].IsPrimary {
				profile = &profiles[i]
				break
			}
		}
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no profile selected and no primary found", shared.ErrProfileNotFound)
	}

	if err := session.SwitchProfile(ctx, profile); err != nil {
		return nil, err
	}
	r.logger.Info("session ready", "account", session.AccountID, "profile", profile.ProfileName)
	return session, nil
}

// openJournal opens the run-journal database and applies pending migrations.
// An empty configured path disables journaling.
func (r *Runner) openJournal() (*repositories.RunRepository, *sql.DB, error) {
	if r.config.Database.Path == "" {
		return nil, nil, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run journal: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate run journal: %w", err)
	}
	return repositories.NewRunRepository(db), db, nil
}

// confirm prompts on output and reads a yes/no answer from input.
func (r *Runner) confirm(prompt string) bool {
	r.writePlain("%s [y/N] ", prompt)

	scanner := bufio.NewScanner(r.input)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeData(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
