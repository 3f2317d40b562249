package main

import (
	"context"

	"github.com/desertthunder/crmigrate/internal/formatter"
	"github.com/desertthunder/crmigrate/internal/services"
	"github.com/urfave/cli/v3"
)

// Status logs in and reports the account's profiles.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	session := services.NewSession(r.config, r.transport)
	if err := session.Login(ctx, cmd.String("email"), cmd.String("password")); err != nil {
		return err
	}

	profiles, err := session.Profiles(ctx)
	if err != nil {
		return err
	}

	configured := r.config.Credentials.Profile
	lines := make([]formatter.ProfileLine, len(profiles))
	for i, p := range profiles {
		lines[i] = formatter.ProfileLine{
			Name:    p.ProfileName,
			Primary: p.IsPrimary,
			Active:  configured != "" && p.ProfileName == configured,
		}
	}

	r.writePlain("Account: %s\n\n", session.AccountID)
	if err := r.writeData(formatter.ProfilesToText(lines)); err != nil {
		return err
	}

	profileName := cmd.String("profile")
	if profileName == "" {
		profileName = configured
	}
	if profileName == "" {
		return nil
	}
	return r.statusCounts(ctx, session, profiles, profileName)
}

// statusCounts switches to the named profile and reports how much data each
// type holds. Ratings are omitted: the service cannot enumerate them.
func (r *Runner) statusCounts(ctx context.Context, session *services.Session, profiles []services.Profile, name string) error {
	profile, err := services.FindProfile(profiles, name)
	if err != nil {
		return err
	}
	if err := session.SwitchProfile(ctx, profile); err != nil {
		return err
	}

	api := session.API()
	acct := session.AccountID

	watchlist, err := services.NewWatchlistCollection(api, acct).ListExisting(ctx)
	if err != nil {
		return err
	}
	history, err := services.NewHistoryCollection(api, acct).ListExisting(ctx)
	if err != nil {
		return err
	}
	lists, err := services.NewListsCollection(api, acct).ListExisting(ctx)
	if err != nil {
		return err
	}

	r.writePlain("\nProfile %q:\n", profile.ProfileName)
	r.writePlain("  watchlist: %d\n", len(watchlist))
	r.writePlain("  history:   %d\n", len(history))
	r.writePlain("  lists:     %d\n", len(lists))
	return nil
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Verify credentials and list the account's profiles",
		Flags:  credentialFlags(),
		Action: r.Status,
	}
}

// credentialFlags are shared by every command that opens a session.
func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "email", Usage: "Account email (overrides config)"},
		&cli.StringFlag{Name: "password", Usage: "Account password (overrides config)"},
		&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "Profile name (overrides config)"},
	}
}
