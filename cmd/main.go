package main

import (
	"context"
	"os"

	"github.com/desertthunder/crmigrate/internal/shared"
	"github.com/urfave/cli/v3"
)

// newApp wires the CLI surface. The global --config flag is resolved before
// any command runs, so every action sees the loaded file. A missing file at
// the default path just means the embedded defaults apply; an explicitly
// passed path must exist.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "crmigrate",
		Usage:   "Migrate watchlist, history, lists, and ratings between profiles",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			path := cmd.String("config")
			if !cmd.IsSet("config") {
				if _, err := os.Stat(path); err != nil {
					return ctx, nil
				}
			}
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
			return ctx, nil
		},
		Commands: r.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := newApp(runner).Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
