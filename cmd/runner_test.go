package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/shared"
	"github.com/desertthunder/crmigrate/internal/store"
	tu "github.com/desertthunder/crmigrate/internal/testing"
)

func testConfig() *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.API.BaseURL = "https://api.example.com"
	cfg.API.TokenURL = "https://auth.example.com/token"
	cfg.API.ClientID = "client"
	cfg.API.ClientSecret = "secret"
	cfg.Credentials.Email = "user@example.com"
	cfg.Credentials.Password = "hunter2"
	cfg.Credentials.Profile = "Sean"
	cfg.Database.Path = ""
	cfg.Sync.Concurrency = 2
	cfg.Sync.MinDelayMs = 0
	cfg.Sync.BaseBackoffMs = 1
	cfg.Sync.MaxBackoffMs = 2
	return cfg
}

// cmdTransport scripts an account with two profiles and empty target data.
func cmdTransport(t *testing.T) tu.RoundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		path := r.URL.Path
		switch {
		case r.URL.Host == "auth.example.com":
			return tu.JSONResponse(200,
				`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":300}`), nil
		case strings.HasSuffix(path, "/accounts/v1/me"):
			return tu.JSONResponse(200, `{"account_id":"acc-1"}`), nil
		case strings.HasSuffix(path, "/multiprofile"):
			return tu.JSONResponse(200, `{"profiles":[
				{"profile_id":"p1","profile_name":"Sean","is_primary":true},
				{"profile_id":"p2","profile_name":"Kids"}]}`), nil
		case strings.Contains(path, "/watchlist"),
			strings.Contains(path, "/watch-history"),
			strings.HasSuffix(path, "/custom-lists"):
			return tu.JSONResponse(200, `{"total":0,"data":[]}`), nil
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL)
		return tu.JSONResponse(404, `{}`), nil
	}
}

func testRunner(t *testing.T, output *bytes.Buffer) *Runner {
	return NewRunner(RunnerOpts{
		Config:    testConfig(),
		Logger:    shared.NewLogger(&bytes.Buffer{}),
		Output:    output,
		Transport: cmdTransport(t),
	})
}

func runApp(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	return newApp(r).Run(context.Background(), append([]string{"crmigrate"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := testConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{Config: config, Logger: logger, Output: output})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil dependencies uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected input to default to os.Stdin")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes formatted text", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()
		if len(commands) == 0 {
			t.Fatal("expected at least one command to be registered")
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("confirm", func(t *testing.T) {
		tests := []struct {
			answer string
			want   bool
		}{
			{"y\n", true},
			{"YES\n", true},
			{"n\n", false},
			{"\n", false},
			{"", false},
		}
		for _, tt := range tests {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{
				Output: output,
				Input:  strings.NewReader(tt.answer),
			})
			if got := runner.confirm("proceed?"); got != tt.want {
				t.Errorf("confirm with %q = %v, want %v", tt.answer, got, tt.want)
			}
			if !strings.Contains(output.String(), "proceed?") {
				t.Error("prompt not written")
			}
		}
	})

	t.Run("openJournal", func(t *testing.T) {
		t.Run("with empty path disables journaling", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: testConfig()})

			repo, db, err := runner.openJournal()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if repo != nil || db != nil {
				t.Error("expected nil journal with empty path")
			}
		})

		t.Run("opens and migrates the database", func(t *testing.T) {
			config := testConfig()
			config.Database.Path = filepath.Join(t.TempDir(), "runs.db")
			runner := NewRunner(RunnerOpts{Config: config})

			repo, db, err := runner.openJournal()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer db.Close()

			if repo == nil {
				t.Fatal("expected a repository")
			}
			if _, err := repo.List(context.Background(), 0); err != nil {
				t.Errorf("journal not usable after open: %v", err)
			}
		})
	})
}

func TestOpenSession(t *testing.T) {
	runner := testRunner(t, &bytes.Buffer{})

	session, err := runner.openSession(context.Background(), "", "", "kids")
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	if session.AccountID != "acc-1" {
		t.Errorf("account = %q", session.AccountID)
	}
	if session.ActiveProfile == nil || session.ActiveProfile.ProfileID != "p2" {
		t.Errorf("active profile = %+v", session.ActiveProfile)
	}
}

func TestOpenSessionFallsBackToPrimary(t *testing.T) {
	output := &bytes.Buffer{}
	runner := testRunner(t, output)
	runner.config.Credentials.Profile = ""

	session, err := runner.openSession(context.Background(), "", "", "")
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	if session.ActiveProfile.ProfileID != "p1" {
		t.Errorf("expected primary profile, got %+v", session.ActiveProfile)
	}
}

func TestStatusCommand(t *testing.T) {
	output := &bytes.Buffer{}
	runner := testRunner(t, output)

	if err := runApp(t, runner, "status"); err != nil {
		t.Fatalf("status failed: %v", err)
	}

	got := output.String()
	for _, want := range []string{"acc-1", "* Sean (primary)", "Kids", "watchlist: 0"} {
		if !strings.Contains(got, want) {
			t.Errorf("status output missing %q:\n%s", want, got)
		}
	}
}

func TestGlobalConfigFlag(t *testing.T) {
	body := `
[credentials]
email = "user@example.com"
password = "hunter2"
profile = "Kids"

[api]
base_url = "https://api.example.com"
token_url = "https://auth.example.com/token"
client_id = "client"
client_secret = "secret"

[database]
path = ""
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	output := &bytes.Buffer{}
	runner := testRunner(t, output)

	if err := runApp(t, runner, "--config", path, "status"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if runner.config.Credentials.Profile != "Kids" {
		t.Errorf("profile = %q, config flag not applied", runner.config.Credentials.Profile)
	}
	if !strings.Contains(output.String(), "* Kids") {
		t.Errorf("status output should mark the configured profile:\n%s", output.String())
	}
}

func TestGlobalConfigFlagRejectsMissingFile(t *testing.T) {
	runner := testRunner(t, &bytes.Buffer{})

	err := runApp(t, runner, "--config", filepath.Join(t.TempDir(), "absent.toml"), "status")
	if err == nil {
		t.Error("expected an error for an explicitly passed missing config")
	}
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	writeSnapshots(t, dir)

	output := &bytes.Buffer{}
	runner := testRunner(t, output)

	if err := runApp(t, runner, "diff", "--input", dir); err != nil {
		t.Fatalf("diff failed: %v", err)
	}

	got := output.String()
	if !strings.Contains(got, "watchlist") || !strings.Contains(got, "1 item would be created") {
		t.Errorf("diff output:\n%s", got)
	}
}

func TestImportCommandDryRun(t *testing.T) {
	dir := t.TempDir()
	writeSnapshots(t, dir)

	output := &bytes.Buffer{}
	runner := testRunner(t, output)

	err := runApp(t, runner, "import", "--input", dir, "--dry-run", "--plain",
		"--report", filepath.Join(dir, "report"))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	got := output.String()
	if !strings.Contains(got, "Import summary") || !strings.Contains(got, "1 skipped") {
		t.Errorf("import output:\n%s", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "report_failed.csv")); err == nil {
		t.Error("dry run without failures should not write a failure report")
	}
}

func TestDiffCommandMissingSnapshot(t *testing.T) {
	runner := testRunner(t, &bytes.Buffer{})

	if err := runApp(t, runner, "diff", "--input", t.TempDir()); err == nil {
		t.Error("expected error for missing snapshot files")
	}
}

// writeSnapshots creates a one-item watchlist snapshot and empty snapshots
// for the other data types.
func writeSnapshots(t *testing.T, dir string) {
	t.Helper()

	save := func(dt models.DataType, err error) {
		if err != nil {
			t.Fatalf("failed to write %s snapshot: %v", dt, err)
		}
	}
	save(models.Watchlist, store.Save(dir, models.Watchlist.Filename(),
		models.NewSnapshot("Sean", []models.WatchlistItem{
			{ContentID: "S1", Title: "One Piece", ContentType: "series"},
		})))
	save(models.History, store.Save(dir, models.History.Filename(),
		models.NewSnapshot("Sean", []models.HistoryItem{})))
	save(models.Lists, store.Save(dir, models.Lists.Filename(),
		models.NewSnapshot("Sean", []models.ListItem{})))
	save(models.Ratings, store.Save(dir, models.Ratings.Filename(),
		models.NewSnapshot("Sean", []models.RatingItem{})))
}
