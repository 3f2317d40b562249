// package formatter renders diff reports, run summaries, failure reports,
// and journal listings to text, CSV, and JSON.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/shared"
	"github.com/desertthunder/crmigrate/internal/tasks"
)

// SummaryToText renders the per-type accounting of an import run followed
// by run-wide totals.
func SummaryToText(result *tasks.ImportResult, elapsed time.Duration) []byte {
	var buf bytes.Buffer

	buf.WriteString("Import summary\n")
	buf.WriteString("==============\n")

	var total, created, present, skipped, failed int
	interrupted := false

	for _, tr := range result.Results {
		s := tr.Summary
		buf.WriteString(fmt.Sprintf("%-10s %d added, %d already there", tr.Type.String(), s.Created, s.AlreadyPresent))
		if s.Skipped > 0 {
			buf.WriteString(fmt.Sprintf(", %d skipped", s.Skipped))
		}
		if s.Failed > 0 {
			buf.WriteString(fmt.Sprintf(", %d failed", s.Failed))
		}
		if s.Interrupted {
			buf.WriteString(" (interrupted)")
			interrupted = true
		}
		buf.WriteString("\n")

		total += s.Total
		created += s.Created
		present += s.AlreadyPresent
		skipped += s.Skipped
		failed += s.Failed
	}

	buf.WriteString(fmt.Sprintf("\nTotal: %s processed in %s\n",
		shared.Pluralize(created+present+skipped+failed, "item", "items"),
		shared.FormatDuration(elapsed)))
	if failed > 0 {
		buf.WriteString(fmt.Sprintf("%s did not make it across.\n", shared.Pluralize(failed, "item", "items")))
	}
	if interrupted {
		buf.WriteString("The run was interrupted; re-running will pick up where it left off.\n")
	}

	return buf.Bytes()
}

// DiffToText renders the counts-only view of what an import would do.
func DiffToText(reports []tasks.DiffReport) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%-10s %8s %14s %10s\n", "type", "missing", "already there", "on target"))
	for _, r := range reports {
		buf.WriteString(fmt.Sprintf("%-10s %8d %14d %10d\n", r.Type.String(), r.Missing, r.Present, r.TargetCount))
	}

	var missing int
	for _, r := range reports {
		missing += r.Missing
		for _, key := range r.DuplicateKeys {
			buf.WriteString(fmt.Sprintf("warning: duplicate %s key on target: %s\n", r.Type.String(), key))
		}
	}
	buf.WriteString(fmt.Sprintf("\n%s would be created.\n", shared.Pluralize(missing, "item", "items")))

	return buf.Bytes()
}

// RunsToText renders journal rows newest-first for the runs listing.
func RunsToText(recs []*models.RunRecord) []byte {
	var buf bytes.Buffer

	if len(recs) == 0 {
		buf.WriteString("No recorded runs.\n")
		return buf.Bytes()
	}

	buf.WriteString(fmt.Sprintf("%-4s %-8s %-10s %-16s %-20s %7s %7s %7s %7s\n",
		"#", "op", "type", "profile", "started", "total", "added", "there", "failed"))
	for _, rec := range recs {
		flag := ""
		if rec.Interrupted {
			flag = " !"
		}
		buf.WriteString(fmt.Sprintf("%-4d %-8s %-10s %-16s %-20s %7d %7d %7d %7d%s\n",
			rec.Sequence, rec.Operation, rec.DataType, rec.ProfileName,
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Total, rec.Created, rec.AlreadyPresent, rec.Failed, flag))
	}

	return buf.Bytes()
}

// Failures flattens the terminal failures of every data type in a result.
func Failures(result *tasks.ImportResult) []FailureRow {
	var rows []FailureRow
	for _, tr := range result.Results {
		for _, f := range tr.Summary.Failures {
			rows = append(rows, FailureRow{
				Type:   tr.Type.String(),
				Key:    f.Key,
				Label:  f.Label,
				Reason: f.Reason,
			})
		}
	}
	return rows
}

// FailureRow is one failed item with its data type attached.
type FailureRow struct {
	Type   string `json:"type"`
	Key    string `json:"key"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// FailuresToCSV converts failed items to CSV with columns: Type, Key, Label, Reason
func FailuresToCSV(rows []FailureRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Type", "Key", "Label", "Reason"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Type, row.Key, row.Label, row.Reason}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// FailuresToJSON converts failed items to indented JSON.
func FailuresToJSON(rows []FailureRow) ([]byte, error) {
	return shared.MarshalJSON(rows, true)
}

// FailureReportResult contains the paths of files created by WriteFailureReport
type FailureReportResult struct {
	CSVFile  string
	JSONFile string
	Count    int
}

// WriteFailureReport writes the failed items of a run to {base}_failed.csv
// and {base}_failed.json. Returns nil when nothing failed.
func WriteFailureReport(result *tasks.ImportResult, baseFilepath string) (*FailureReportResult, error) {
	rows := Failures(result)
	if len(rows) == 0 {
		return nil, nil
	}
	if baseFilepath == "" {
		baseFilepath = "import"
	}

	csvData, err := FailuresToCSV(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}
	csvFile := baseFilepath + "_failed.csv"
	if err := os.WriteFile(csvFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	jsonData, err := FailuresToJSON(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON: %w", err)
	}
	jsonFile := baseFilepath + "_failed.json"
	if err := os.WriteFile(jsonFile, jsonData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write JSON file: %w", err)
	}

	return &FailureReportResult{
		CSVFile:  csvFile,
		JSONFile: jsonFile,
		Count:    len(rows),
	}, nil
}

// ProfilesToText renders the account's profiles with the active one marked.
func ProfilesToText(profiles []ProfileLine) []byte {
	var buf bytes.Buffer
	for _, p := range profiles {
		marker := " "
		if p.Active {
			marker = "*"
		}
		primary := ""
		if p.Primary {
			primary = " (primary)"
		}
		buf.WriteString(fmt.Sprintf("%s %s%s\n", marker, p.Name, primary))
	}
	return buf.Bytes()
}

// ProfileLine is one row of the profile listing.
type ProfileLine struct {
	Name    string
	Primary bool
	Active  bool
}
