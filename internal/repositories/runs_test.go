package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/shared"
	_ "github.com/mattn/go-sqlite3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return db
}

func sampleRun(dataType string) *models.RunRecord {
	now := time.Now().UTC()
	finished := now.Add(30 * time.Second)
	return &models.RunRecord{
		Operation:      models.OpImport,
		DataType:       dataType,
		ProfileName:    "Sean",
		Total:          10,
		Created:        6,
		AlreadyPresent: 3,
		Failed:         1,
		StartedAt:      now,
		FinishedAt:     &finished,
	}
}

func TestRecordAndGet(t *testing.T) {
	repo := NewRunRepository(testDB(t))
	ctx := context.Background()

	rec := sampleRun("watchlist")
	if err := repo.Record(ctx, rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.ID == "" || rec.Sequence == 0 {
		t.Errorf("Record() should assign ID and sequence, got %q / %d", rec.ID, rec.Sequence)
	}

	got, err := repo.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.DataType != "watchlist" || got.Created != 6 || got.Failed != 1 {
		t.Errorf("got = %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("finished_at not persisted")
	}
}

func TestRecordRejectsInvalid(t *testing.T) {
	repo := NewRunRepository(testDB(t))

	rec := sampleRun("watchlist")
	rec.Operation = "sideload"
	if err := repo.Record(context.Background(), rec); err == nil {
		t.Error("invalid operation should fail")
	}
}

func TestListNewestFirst(t *testing.T) {
	repo := NewRunRepository(testDB(t))
	ctx := context.Background()

	for _, dt := range []string{"watchlist", "lists", "ratings", "history"} {
		if err := repo.Record(ctx, sampleRun(dt)); err != nil {
			t.Fatalf("Record(%s) error = %v", dt, err)
		}
	}

	recs, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("runs = %d, want 4", len(recs))
	}
	if recs[0].DataType != "history" || recs[3].DataType != "watchlist" {
		t.Errorf("order = %s..%s, want newest first", recs[0].DataType, recs[3].DataType)
	}

	limited, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited = %d, want 2", len(limited))
	}
}

func TestDelete(t *testing.T) {
	repo := NewRunRepository(testDB(t))
	ctx := context.Background()

	rec := sampleRun("ratings")
	if err := repo.Record(ctx, rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := repo.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, rec.ID); err == nil {
		t.Error("Get() after delete should fail")
	}
	if err := repo.Delete(ctx, "missing"); err == nil {
		t.Error("deleting a missing run should fail")
	}
}

func TestSequencesAreMonotonic(t *testing.T) {
	db := testDB(t)

	prev := 0
	for i := 0; i < 5; i++ {
		seq, err := NextSequence(db, "runs")
		if err != nil {
			t.Fatalf("NextSequence() error = %v", err)
		}
		if seq <= prev {
			t.Errorf("sequence %d not monotonic after %d", seq, prev)
		}
		prev = seq
	}
}
