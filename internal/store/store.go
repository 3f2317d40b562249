// package store persists snapshots as one JSON file per data type.
//
// Writes are atomic: data goes to a temp file in the destination directory,
// is flushed to disk, then renamed into place. A crash mid-write never
// leaves a corrupt or partial file at the destination path.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/shared"
)

// Save writes a snapshot to dir/filename atomically. The destination
// directory is created if needed. The previous file, if any, remains intact
// until the rename succeeds.
func Save[T models.Item](dir, filename string, snap *models.Snapshot[T]) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrSnapshotCount, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	target := filepath.Join(dir, filename)
	tmp := filepath.Join(dir, "."+filename+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s -> %s: %w", tmp, target, err)
	}
	return nil
}

// Load reads and validates a snapshot from path. Structural violations
// (unparseable JSON, unsupported format version, declared count not
// matching the item count) fail with a descriptive wrapped store error,
// never a silent truncation.
func Load[T models.Item](path string) (*models.Snapshot[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var snap models.Snapshot[T]
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", shared.ErrSnapshotCorrupt, path, err)
	}

	if snap.FormatVersion != models.FormatVersion {
		return nil, fmt.Errorf("%w: %s declares version %d, supported version %d",
			shared.ErrSnapshotVersion, path, snap.FormatVersion, models.FormatVersion)
	}
	if snap.Metadata.TotalCount != len(snap.Items) {
		return nil, fmt.Errorf("%w: %s declares %d items, found %d",
			shared.ErrSnapshotCount, path, snap.Metadata.TotalCount, len(snap.Items))
	}

	return &snap, nil
}
