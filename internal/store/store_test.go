package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/shared"
)

func sampleRatings() *models.Snapshot[models.RatingItem] {
	return models.NewSnapshot("Sean", []models.RatingItem{
		{ContentID: "G4PH0WXYZ", ContentType: "series", Title: "One Piece", Rating: models.FiveStars},
		{ContentID: "GMKUX0ABC", ContentType: "movie_listing", Title: "A Silent Voice", Rating: models.FourStars},
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if err := Save(dir, "ratings.json", sampleRatings()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load[models.RatingItem](filepath.Join(dir, "ratings.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Metadata.ProfileName != "Sean" {
		t.Errorf("profile = %q", loaded.Metadata.ProfileName)
	}
	if len(loaded.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(loaded.Items))
	}
	if loaded.Items[0].Rating != models.FiveStars {
		t.Errorf("rating = %q", loaded.Items[0].Rating)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, "ratings.json", sampleRatings()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSaveOverwriteKeepsOldUntilRename(t *testing.T) {
	// Simulates the crash window: a temp file exists but the rename never
	// ran. The pre-existing destination must be byte-for-byte unchanged.
	dir := t.TempDir()
	target := filepath.Join(dir, "ratings.json")

	if err := Save(dir, "ratings.json", sampleRatings()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	before, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	tmp := filepath.Join(dir, ".ratings.json.tmp")
	if err := os.WriteFile(tmp, []byte("half-written garbage"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	after, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(before) != string(after) {
		t.Error("destination changed while temp file was pending")
	}

	loaded, err := Load[models.RatingItem](target)
	if err != nil {
		t.Fatalf("Load() after simulated crash: %v", err)
	}
	if len(loaded.Items) != 2 {
		t.Errorf("items = %d, want 2", len(loaded.Items))
	}
}

func TestSaveRejectsCountMismatch(t *testing.T) {
	dir := t.TempDir()
	snap := sampleRatings()
	snap.Metadata.TotalCount = 7

	err := Save(dir, "ratings.json", snap)
	if !errors.Is(err, shared.ErrSnapshotCount) {
		t.Errorf("Save() error = %v, want ErrSnapshotCount", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "ratings.json")); !os.IsNotExist(statErr) {
		t.Error("no file should exist at the destination after a rejected save")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "count mismatch",
			content: `{"format_version":1,"metadata":{"profile_name":"Sean","exported_at":"2026-02-18T12:00:00Z","total_count":3},"items":[]}`,
			wantErr: shared.ErrSnapshotCount,
		},
		{
			name:    "unsupported version",
			content: `{"format_version":9,"metadata":{"profile_name":"Sean","exported_at":"2026-02-18T12:00:00Z","total_count":0},"items":[]}`,
			wantErr: shared.ErrSnapshotVersion,
		},
		{
			name:    "missing version field",
			content: `{"metadata":{"profile_name":"Sean","exported_at":"2026-02-18T12:00:00Z","total_count":0},"items":[]}`,
			wantErr: shared.ErrSnapshotVersion,
		},
		{
			name:    "truncated json",
			content: `{"format_version":1,"metadata":{"profile_na`,
			wantErr: shared.ErrSnapshotCorrupt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ratings.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			_, err := Load[models.RatingItem](path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load[models.RatingItem](filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Error("Load() should fail for a missing file")
	}
}
