package repositories

import (
	"database/sql"
	"fmt"
)

// NextSequence atomically increments and returns the next sequence number
// for the named counter. Sequence numbers give runs a human-readable order
// independent of their UUIDs.
func NextSequence(db *sql.DB, name string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO sequences (name, value) VALUES (?, 0) ON CONFLICT(name) DO NOTHING", name,
	); err != nil {
		return 0, fmt.Errorf("failed to seed sequence: %w", err)
	}

	if _, err := tx.Exec("UPDATE sequences SET value = value + 1 WHERE name = ?", name); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	if err := tx.QueryRow("SELECT value FROM sequences WHERE name = ?", name).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}
	return sequence, nil
}
