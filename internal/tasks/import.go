package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/services"
	"github.com/desertthunder/crmigrate/internal/shared"
	"github.com/desertthunder/crmigrate/internal/store"
)

// Journal records run accounting rows. Implemented by the run repository;
// a nil journal disables recording.
type Journal interface {
	Record(ctx context.Context, rec *models.RunRecord) error
}

// TypeResult pairs a data type with its completed run summary.
type TypeResult struct {
	Type    models.DataType
	Summary *RunSummary
}

// ImportResult aggregates the per-type summaries of one import run, in the
// order they were executed.
type ImportResult struct {
	Results []TypeResult
}

// Importer orchestrates a full import: load snapshots, verify connectivity,
// then per data type enumerate the target, diff, and drive the missing set
// through the engine. Data types run sequentially; the block gate is shared
// so a service-level block pauses everything.
type Importer struct {
	cfg     *shared.Config
	session *services.Session
	logger  *log.Logger
	events  chan<- Event
	journal Journal
	dryRun  bool
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

func ImporterEvents(ch chan<- Event) ImporterOption {
	return func(i *Importer) { i.events = ch }
}

func ImporterLogger(l *log.Logger) ImporterOption {
	return func(i *Importer) { i.logger = l }
}

func ImporterJournal(j Journal) ImporterOption {
	return func(i *Importer) { i.journal = j }
}

func ImporterDryRun(dryRun bool) ImporterOption {
	return func(i *Importer) { i.dryRun = dryRun }
}

// NewImporter builds an importer bound to an authenticated, profile-scoped
// session.
func NewImporter(cfg *shared.Config, session *services.Session, opts ...ImporterOption) *Importer {
	imp := &Importer{
		cfg:     cfg,
		session: session,
		logger:  shared.NewLogger(os.Stderr),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// snapshots holds all four loaded exports. Loading everything up front
// means a corrupt file aborts the run before any write happens.
type snapshots struct {
	watchlist *models.Snapshot[models.WatchlistItem]
	history   *models.Snapshot[models.HistoryItem]
	lists     *models.Snapshot[models.ListItem]
	ratings   *models.Snapshot[models.RatingItem]
}

func loadSnapshots(dir string) (*snapshots, error) {
	var (
		s   snapshots
		err error
	)
	if s.watchlist, err = store.Load[models.WatchlistItem](filepath.Join(dir, models.Watchlist.Filename())); err != nil {
		return nil, err
	}
	if s.history, err = store.Load[models.HistoryItem](filepath.Join(dir, models.History.Filename())); err != nil {
		return nil, err
	}
	if s.lists, err = store.Load[models.ListItem](filepath.Join(dir, models.Lists.Filename())); err != nil {
		return nil, err
	}
	if s.ratings, err = store.Load[models.RatingItem](filepath.Join(dir, models.Ratings.Filename())); err != nil {
		return nil, err
	}
	return &s, nil
}

// Run imports every data type from inputDir into the session's profile.
// Order matters for the user experience, not correctness: watchlist and
// lists are quick, ratings and history dominate the wall clock.
func (imp *Importer) Run(ctx context.Context, inputDir string) (*ImportResult, error) {
	snaps, err := loadSnapshots(inputDir)
	if err != nil {
		return nil, err
	}

	if err := imp.checkConnectivity(ctx); err != nil {
		return nil, err
	}

	api := imp.session.API()
	acct := imp.session.AccountID
	gate := NewBlockGate()
	result := &ImportResult{}

	wl, err := importType(ctx, imp, gate, models.Watchlist, snaps.watchlist,
		services.NewWatchlistCollection(api, acct))
	result.append(models.Watchlist, wl)
	if err != nil {
		return result, err
	}

	ls, err := importType(ctx, imp, gate, models.Lists, snaps.lists,
		services.NewListsCollection(api, acct))
	result.append(models.Lists, ls)
	if err != nil {
		return result, err
	}

	rt, err := importType(ctx, imp, gate, models.Ratings, snaps.ratings,
		services.NewRatingsCollection(api, acct))
	result.append(models.Ratings, rt)
	if err != nil {
		return result, err
	}

	hi, err := importType(ctx, imp, gate, models.History, snaps.history,
		services.NewHistoryCollection(api, acct))
	result.append(models.History, hi)
	if err != nil {
		return result, err
	}

	return result, nil
}

func (r *ImportResult) append(dt models.DataType, summary *RunSummary) {
	if summary != nil {
		r.Results = append(r.Results, TypeResult{Type: dt, Summary: summary})
	}
}

// DiffReport carries the counts-only view of one data type's diff for
// interactive reporting.
type DiffReport struct {
	Type          models.DataType
	Missing       int
	Present       int
	TargetCount   int
	DuplicateKeys []string
}

// Diff computes the Missing/Present partition for every data type without
// writing anything.
func (imp *Importer) Diff(ctx context.Context, inputDir string) ([]DiffReport, error) {
	snaps, err := loadSnapshots(inputDir)
	if err != nil {
		return nil, err
	}

	api := imp.session.API()
	acct := imp.session.AccountID

	var reports []DiffReport

	wl, err := diffType(ctx, snaps.watchlist, services.NewWatchlistCollection(api, acct))
	if err != nil {
		return nil, fmt.Errorf("watchlist: %w", err)
	}
	reports = append(reports, report(models.Watchlist, wl))

	ls, err := diffType(ctx, snaps.lists, services.NewListsCollection(api, acct))
	if err != nil {
		return nil, fmt.Errorf("lists: %w", err)
	}
	reports = append(reports, report(models.Lists, ls))

	rt, err := diffType(ctx, snaps.ratings, services.NewRatingsCollection(api, acct))
	if err != nil {
		return nil, fmt.Errorf("ratings: %w", err)
	}
	reports = append(reports, report(models.Ratings, rt))

	hi, err := diffType(ctx, snaps.history, services.NewHistoryCollection(api, acct))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	reports = append(reports, report(models.History, hi))

	return reports, nil
}

func diffType[T models.Item](ctx context.Context, snap *models.Snapshot[T], col services.Collection[T]) (*DiffResult[T], error) {
	existing, err := col.ListExisting(ctx)
	if err != nil {
		return nil, err
	}
	return Diff(snap, existing), nil
}

func report[T models.Item](dt models.DataType, d *DiffResult[T]) DiffReport {
	return DiffReport{
		Type:          dt,
		Missing:       len(d.Missing),
		Present:       len(d.Present),
		TargetCount:   d.TargetCount,
		DuplicateKeys: d.DuplicateKeys,
	}
}

// checkConnectivity verifies the service is reachable before any item is
// processed. A block response gets one pause-and-retry; anything else that
// fails twice aborts the run as a setup failure.
func (imp *Importer) checkConnectivity(ctx context.Context) error {
	api := imp.session.API()

	probe := func() error {
		var me struct {
			AccountID string `json:"account_id"`
		}
		return api.Get(ctx, "/accounts/v1/me", &me)
	}

	err := probe()
	if err == nil {
		return nil
	}

	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.Blocked {
		pause := imp.cfg.Tuning("").BlockPause()
		imp.logger.Warn("service block on connectivity check, pausing before retry", "pause", pause)
		if sleepErr := sleepCtx(ctx, pause); sleepErr != nil {
			return sleepErr
		}
		if err = probe(); err == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %v", shared.ErrSetupFailed, err)
}

func importType[T models.Item](ctx context.Context, imp *Importer, gate *BlockGate, dt models.DataType, snap *models.Snapshot[T], col services.Collection[T]) (*RunSummary, error) {
	existing, err := col.ListExisting(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate target %s: %w", dt, err)
	}

	d := Diff(snap, existing)
	imp.logger.Info("diffed against target",
		"type", dt.String(), "missing", len(d.Missing), "present", len(d.Present))

	engine := NewEngine(imp.cfg.Tuning(dt.String()),
		WithGate(gate),
		WithEvents(imp.events),
		WithLogger(imp.logger),
		WithDryRun(imp.dryRun),
	)

	started := time.Now().UTC()
	summary, runErr := Run(ctx, engine, dt, d, col)
	imp.record(ctx, models.OpImport, dt, summary, started, runErr)
	return summary, runErr
}

func (imp *Importer) record(ctx context.Context, op string, dt models.DataType, summary *RunSummary, started time.Time, runErr error) {
	if imp.journal == nil || summary == nil {
		return
	}

	finished := time.Now().UTC()
	rec := &models.RunRecord{
		ID:             shared.GenerateID(),
		Operation:      op,
		DataType:       dt.String(),
		ProfileName:    imp.profileName(),
		Total:          summary.Total,
		Created:        summary.Created,
		AlreadyPresent: summary.AlreadyPresent,
		Skipped:        summary.Skipped,
		Failed:         summary.Failed,
		Interrupted:    summary.Interrupted,
		StartedAt:      started,
		FinishedAt:     &finished,
	}
	if runErr != nil {
		rec.ErrorMessage = runErr.Error()
	}

	// The journal row must survive cancellation; it is the record of what
	// the interrupted run did manage to do.
	if err := imp.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		imp.logger.Warn("failed to record run in journal", "type", dt.String(), "err", err)
	}
}

func (imp *Importer) profileName() string {
	if imp.session.ActiveProfile != nil {
		return imp.session.ActiveProfile.ProfileName
	}
	return imp.cfg.Credentials.Profile
}
