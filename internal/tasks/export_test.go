package tasks

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/services"
	"github.com/desertthunder/crmigrate/internal/shared"
	"github.com/desertthunder/crmigrate/internal/store"
	helpers "github.com/desertthunder/crmigrate/internal/testing"
)

func exportTransport(t *testing.T) helpers.RoundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		path := r.URL.Path
		switch {
		case r.URL.Host == "auth.example.com":
			return helpers.JSONResponse(200,
				`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":300}`), nil
		case strings.HasSuffix(path, "/accounts/v1/me"):
			return helpers.JSONResponse(200, `{"account_id":"acc-1"}`), nil
		case strings.Contains(path, "/watchlist"):
			return helpers.JSONResponse(200, `{"total":1,"data":[
				{"is_favorite":true,"fully_watched":false,
				 "panel":{"id":"S1","type":"series","title":"One Piece","slug_title":"one-piece"}}]}`), nil
		case strings.Contains(path, "/watch-history"):
			// Deliberately newest-first; the exporter must sort ascending.
			return helpers.JSONResponse(200, `{"total":2,"data":[
				{"id":"EP2","parent_id":"S1","parent_type":"series","date_played":"2026-02-01T10:00:00Z","playhead":300,"fully_watched":true,
				 "panel":{"id":"EP2","type":"episode","title":"Ep 2","episode_metadata":{"series_id":"S1","series_title":"One Piece","series_slug_title":"one-piece"}}},
				{"id":"EP1","parent_id":"S1","parent_type":"series","date_played":"2026-01-01T10:00:00Z","playhead":840,"fully_watched":true,"panel":null}]}`), nil
		case strings.HasSuffix(path, "/custom-lists"):
			return helpers.JSONResponse(200, `{"total":0,"data":[]}`), nil
		case strings.Contains(path, "/rating/series/S1"):
			return helpers.JSONResponse(200, `{"rating":"5s"}`), nil
		case strings.Contains(path, "/rating/"):
			return helpers.JSONResponse(404, `{"code":"not_found"}`), nil
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL)
		return helpers.JSONResponse(404, `{}`), nil
	}
}

func TestExporterRun(t *testing.T) {
	dir := t.TempDir()
	cfg := importerConfig()
	cfg.Export.RateLimit = 1000

	session := services.NewSession(cfg, exportTransport(t))
	ctx := context.Background()
	if err := session.Login(ctx, "", ""); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	events := make(chan Event, 16)
	exp := NewExporter(cfg, session,
		ExporterLogger(shared.NewLogger(io.Discard)), ExporterEvents(events))
	if err := exp.Run(ctx, dir); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	close(events)

	finished := 0
	for ev := range events {
		if ev.Kind == RunFinished {
			finished++
		}
	}
	if finished != 4 {
		t.Errorf("finished events = %d, want one per data type", finished)
	}

	for _, dt := range []models.DataType{models.Watchlist, models.History, models.Lists, models.Ratings} {
		helpers.AssertFileExists(t, filepath.Join(dir, dt.Filename()))
	}

	history, err := store.Load[models.HistoryItem](filepath.Join(dir, models.History.Filename()))
	if err != nil {
		t.Fatalf("loading history snapshot: %v", err)
	}
	if len(history.Items) != 2 {
		t.Fatalf("history items = %d, want 2", len(history.Items))
	}
	if history.Items[0].ContentID != "EP1" {
		t.Errorf("history not sorted oldest-first: first = %s", history.Items[0].ContentID)
	}
	if !history.Items[1].DatePlayed.After(history.Items[0].DatePlayed) {
		t.Error("history dates out of order")
	}
	if !history.Items[0].Partial {
		t.Error("panel-less entry should be marked partial")
	}

	ratings, err := store.Load[models.RatingItem](filepath.Join(dir, models.Ratings.Filename()))
	if err != nil {
		t.Fatalf("loading ratings snapshot: %v", err)
	}
	if len(ratings.Items) != 1 {
		t.Fatalf("ratings = %d, want 1 (unrated probes skipped)", len(ratings.Items))
	}
	if ratings.Items[0].Rating != models.FiveStars || ratings.Items[0].ContentID != "S1" {
		t.Errorf("rating = %+v", ratings.Items[0])
	}

	watchlist, err := store.Load[models.WatchlistItem](filepath.Join(dir, models.Watchlist.Filename()))
	if err != nil {
		t.Fatalf("loading watchlist snapshot: %v", err)
	}
	if watchlist.Metadata.TotalCount != 1 || !watchlist.Items[0].IsFavourite {
		t.Errorf("watchlist = %+v", watchlist.Items)
	}
}

func TestExporterWarnsWhenDroppingEvents(t *testing.T) {
	var buf bytes.Buffer
	exp := NewExporter(importerConfig(), nil,
		ExporterLogger(shared.NewLogger(&buf)), ExporterEvents(make(chan Event)))

	// Nothing reads the channel, so delivery must fall through to the
	// logged drop instead of blocking.
	exp.sendEvent(Event{Kind: RunFinished, DataType: models.Watchlist})

	if !strings.Contains(buf.String(), "dropping progress event") {
		t.Errorf("expected a drop warning, got %q", buf.String())
	}
}
