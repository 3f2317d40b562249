package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/services"
	"github.com/desertthunder/crmigrate/internal/shared"
	"github.com/desertthunder/crmigrate/internal/store"
	"golang.org/x/time/rate"
)

// Exporter snapshots a profile's data to one JSON file per data type.
type Exporter struct {
	cfg     *shared.Config
	session *services.Session
	logger  *log.Logger
	events  chan<- Event
	journal Journal
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

func ExporterEvents(ch chan<- Event) ExporterOption {
	return func(e *Exporter) { e.events = ch }
}

func ExporterLogger(l *log.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = l }
}

func ExporterJournal(j Journal) ExporterOption {
	return func(e *Exporter) { e.journal = j }
}

func NewExporter(cfg *shared.Config, session *services.Session, opts ...ExporterOption) *Exporter {
	exp := &Exporter{
		cfg:     cfg,
		session: session,
		logger:  shared.NewLogger(os.Stderr),
	}
	for _, opt := range opts {
		opt(exp)
	}
	return exp
}

// Run exports watchlist, history, lists, and ratings to outputDir. Each
// snapshot is written atomically as soon as its fetch completes, so an
// interrupted export keeps every finished file.
func (exp *Exporter) Run(ctx context.Context, outputDir string) error {
	api := exp.session.API()
	acct := exp.session.AccountID
	profile := exp.profileName()

	watchlist, err := exportType(ctx, exp, models.Watchlist, outputDir, profile,
		services.NewWatchlistCollection(api, acct))
	if err != nil {
		return err
	}

	history, err := exportType(ctx, exp, models.History, outputDir, profile,
		services.NewHistoryCollection(api, acct))
	if err != nil {
		return err
	}

	if _, err := exportType(ctx, exp, models.Lists, outputDir, profile,
		services.NewListsCollection(api, acct)); err != nil {
		return err
	}

	ratings, err := exp.probeRatings(ctx,
		services.NewRatingsCollection(api, acct), watchlist, history)
	if err != nil {
		return err
	}
	if err := saveSnapshot(ctx, exp, models.Ratings, outputDir, profile, ratings); err != nil {
		return err
	}

	return nil
}

// exportType fetches one data type and writes its snapshot. History is
// sorted oldest-first so a replay on the target preserves chronology.
func exportType[T models.Item](ctx context.Context, exp *Exporter, dt models.DataType, dir, profile string, col services.Collection[T]) ([]T, error) {
	items, err := col.ListExisting(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", dt, err)
	}

	if dt == models.History {
		if history, ok := any(items).([]models.HistoryItem); ok {
			sort.SliceStable(history, func(i, j int) bool {
				return history[i].DatePlayed.Before(history[j].DatePlayed)
			})
		}
	}

	if err := saveSnapshot(ctx, exp, dt, dir, profile, items); err != nil {
		return nil, err
	}
	return items, nil
}

func saveSnapshot[T models.Item](ctx context.Context, exp *Exporter, dt models.DataType, dir, profile string, items []T) error {
	snap := models.NewSnapshot(profile, items)
	if err := store.Save(dir, dt.Filename(), snap); err != nil {
		return fmt.Errorf("failed to save %s snapshot: %w", dt, err)
	}

	exp.logger.Info("exported", "type", dt.String(), "items", len(items))
	exp.sendEvent(Event{
		Kind:     RunFinished,
		DataType: dt,
		Total:    len(items),
		Summary:  &RunSummary{DataType: dt, Total: len(items), Created: len(items)},
	})
	exp.record(ctx, dt, len(items))
	return nil
}

// sendEvent mirrors the engine's non-blocking delivery: a full consumer
// buffer drops the event with a warning.
func (exp *Exporter) sendEvent(ev Event) {
	if exp.events == nil {
		return
	}
	select {
	case exp.events <- ev:
	default:
		exp.logger.Warn("dropping progress event, consumer is lagging",
			"kind", ev.Kind, "type", ev.DataType.String())
	}
}

func (exp *Exporter) record(ctx context.Context, dt models.DataType, count int) {
	if exp.journal == nil {
		return
	}
	now := time.Now().UTC()
	rec := &models.RunRecord{
		ID:          shared.GenerateID(),
		Operation:   models.OpExport,
		DataType:    dt.String(),
		ProfileName: exp.profileName(),
		Total:       count,
		Created:     count,
		StartedAt:   now,
		FinishedAt:  &now,
	}
	if err := exp.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		exp.logger.Warn("failed to record run in journal", "type", dt.String(), "err", err)
	}
}

type ratingCandidate struct {
	contentID   string
	contentType string
	title       string
}

// probeRatings discovers rated titles. The service cannot enumerate a
// profile's ratings, so every distinct series and movie listing seen in the
// watchlist or history parents is probed individually, under a bounded
// worker pool and request rate.
func (exp *Exporter) probeRatings(ctx context.Context, col *services.RatingsCollection, watchlist []models.WatchlistItem, history []models.HistoryItem) ([]models.RatingItem, error) {
	seen := make(map[string]struct{})
	var candidates []ratingCandidate

	for _, item := range watchlist {
		if _, ok := seen[item.ContentID]; ok {
			continue
		}
		seen[item.ContentID] = struct{}{}
		candidates = append(candidates, ratingCandidate{item.ContentID, item.ContentType, item.Title})
	}
	for _, item := range history {
		if item.ParentID == "" {
			continue
		}
		if _, ok := seen[item.ParentID]; ok {
			continue
		}
		seen[item.ParentID] = struct{}{}
		candidates = append(candidates, ratingCandidate{item.ParentID, item.ParentType, item.SeriesTitle})
	}

	workers := exp.cfg.Export.NumWorkers
	if workers <= 0 {
		workers = 5
	}
	if workers > 10 {
		workers = 10
	}
	rps := exp.cfg.Export.RateLimit
	if rps <= 0 {
		rps = 5.0
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	jobs := make(chan ratingCandidate)
	found := make(chan models.RatingItem, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				rating, err := col.GetRating(ctx, cand.contentType, cand.contentID)
				if err != nil {
					var apiErr *services.APIError
					if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
						exp.logger.Warn("rating probe failed, skipping",
							"content", cand.contentID, "err", err)
					}
					continue
				}
				if rating == "" {
					continue
				}
				found <- models.RatingItem{
					ContentID:   cand.contentID,
					ContentType: cand.contentType,
					Title:       cand.title,
					Rating:      rating,
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, cand := range candidates {
			select {
			case <-ctx.Done():
				return
			case jobs <- cand:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(found)
	}()

	var items []models.RatingItem
	for item := range found {
		items = append(items, item)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (exp *Exporter) profileName() string {
	if exp.session.ActiveProfile != nil {
		return exp.session.ActiveProfile.ProfileName
	}
	return exp.cfg.Credentials.Profile
}
