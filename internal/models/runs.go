package models

import (
	"fmt"
	"time"
)

// Run operations recorded in the journal.
const (
	OpImport = "import"
	OpExport = "export"
)

// RunRecord is one journal row: the full accounting of a single data type's
// export or import run.
type RunRecord struct {
	ID             string
	Sequence       int
	Operation      string
	DataType       string
	ProfileName    string
	Total          int
	Created        int
	AlreadyPresent int
	Skipped        int
	Failed         int
	Interrupted    bool
	ErrorMessage   string
	StartedAt      time.Time
	FinishedAt     *time.Time
	CreatedAt      time.Time
}

// Validate checks the record's required fields and count consistency.
func (r *RunRecord) Validate() error {
	if r.Operation != OpImport && r.Operation != OpExport {
		return fmt.Errorf("invalid operation %q", r.Operation)
	}
	if r.DataType == "" {
		return fmt.Errorf("missing data type")
	}
	if r.Total < 0 || r.Created < 0 || r.AlreadyPresent < 0 || r.Skipped < 0 || r.Failed < 0 {
		return fmt.Errorf("negative counts")
	}
	if processed := r.Created + r.AlreadyPresent + r.Skipped + r.Failed; processed > r.Total {
		return fmt.Errorf("processed %d exceeds total %d", processed, r.Total)
	}
	return nil
}
