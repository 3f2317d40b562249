package main

import (
	"context"

	"github.com/desertthunder/crmigrate/internal/services"
	"github.com/urfave/cli/v3"
)

// ProfileRename changes a profile's display name.
func (r *Runner) ProfileRename(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("name")
	newName := cmd.String("new-name")

	session := services.NewSession(r.config, r.transport)
	if err := session.Login(ctx, cmd.String("email"), cmd.String("password")); err != nil {
		return err
	}

	profiles, err := session.Profiles(ctx)
	if err != nil {
		return err
	}
	profile, err := services.FindProfile(profiles, name)
	if err != nil {
		return err
	}

	if err := session.RenameProfile(ctx, profile.ProfileID, newName); err != nil {
		return err
	}
	r.writePlain("Renamed profile %q to %q\n", profile.ProfileName, newName)
	return nil
}

// ProfileCreate adds a new profile to the account.
func (r *Runner) ProfileCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("name")

	session := services.NewSession(r.config, r.transport)
	if err := session.Login(ctx, cmd.String("email"), cmd.String("password")); err != nil {
		return err
	}

	created, err := session.CreateProfile(ctx, name)
	if err != nil {
		return err
	}
	r.writePlain("Created profile %q (%s)\n", created.ProfileName, created.ProfileID)
	return nil
}

func renameProfileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rename-profile",
		Usage: "Change a profile's display name",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Account email (overrides config)"},
			&cli.StringFlag{Name: "password", Usage: "Account password (overrides config)"},
			&cli.StringFlag{Name: "name", Usage: "Current profile name", Required: true},
			&cli.StringFlag{Name: "new-name", Usage: "New profile name", Required: true},
		},
		Action: r.ProfileRename,
	}
}

func createProfileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "create-profile",
		Usage: "Add a new profile to the account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Account email (overrides config)"},
			&cli.StringFlag{Name: "password", Usage: "Account password (overrides config)"},
			&cli.StringFlag{Name: "name", Usage: "Profile name", Required: true},
		},
		Action: r.ProfileCreate,
	}
}
