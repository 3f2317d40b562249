package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/shared"
)

// RunRepository stores run journal rows.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a RunRepository with the given database connection.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Record inserts a completed run. A missing ID is generated; the sequence
// is always assigned here.
func (r *RunRepository) Record(ctx context.Context, rec *models.RunRecord) error {
	if rec.ID == "" {
		rec.ID = shared.GenerateID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	rec.Sequence = sequence

	query := `
		INSERT INTO runs (id, sequence, operation, data_type, profile_name,
			total, created, already_present, skipped, failed, interrupted,
			error_message, started_at, finished_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Sequence,
		rec.Operation,
		rec.DataType,
		rec.ProfileName,
		rec.Total,
		rec.Created,
		rec.AlreadyPresent,
		rec.Skipped,
		rec.Failed,
		rec.Interrupted,
		nullString(rec.ErrorMessage),
		rec.StartedAt,
		rec.FinishedAt,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Get retrieves one run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	return scanRun(row)
}

// List returns the most recent runs, newest first. limit <= 0 returns all.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	query := selectRuns + " ORDER BY sequence DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var recs []*models.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes one run row.
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

const selectRuns = `
	SELECT id, sequence, operation, data_type, profile_name,
		total, created, already_present, skipped, failed, interrupted,
		error_message, started_at, finished_at, created_at
	FROM runs
`

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*models.RunRecord, error) {
	var (
		rec      models.RunRecord
		errMsg   sql.NullString
		finished sql.NullTime
	)
	err := row.Scan(
		&rec.ID,
		&rec.Sequence,
		&rec.Operation,
		&rec.DataType,
		&rec.ProfileName,
		&rec.Total,
		&rec.Created,
		&rec.AlreadyPresent,
		&rec.Skipped,
		&rec.Failed,
		&rec.Interrupted,
		&errMsg,
		&rec.StartedAt,
		&finished,
		&rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if errMsg.Valid {
		rec.ErrorMessage = errMsg.String
	}
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
