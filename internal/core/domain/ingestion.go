package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opengovtools/fiscal_transparency_app/internal/utils/fiscal"
)

// UploadMode selects how an ingestion run treats existing rows.
type UploadMode string

const (
	// ModeAppend adds rows without deleting anything.
	ModeAppend UploadMode = "append"
	// ModeReplaceYear deletes one fiscal year before inserting.
	ModeReplaceYear UploadMode = "replace_year"
	// ModeReplaceTable deletes every row of the dataset before inserting.
	ModeReplaceTable UploadMode = "replace_table"
)

// ParseUploadMode validates a raw mode string.
func ParseUploadMode(s string) (UploadMode, error) {
	switch m := UploadMode(s); m {
	case ModeAppend, ModeReplaceYear, ModeReplaceTable:
		return m, nil
	default:
		return "", fmt.Errorf("unknown upload mode %q", s)
	}
}

// RawRecord is one parsed input row keyed by column name. Empty cells are
// nil. Numeric-declared columns that parsed successfully also appear in
// Numbers. RawRecords are discarded after normalization.
type RawRecord struct {
	// Row is the 1-based data row number (header excluded), used in issues.
	Row     int
	Fields  map[string]*string
	Numbers map[string]decimal.Decimal
}

// Text returns the trimmed field value, or "" for an empty cell.
func (r RawRecord) Text(col string) string {
	if v := r.Fields[col]; v != nil {
		return *v
	}
	return ""
}

// Number returns the parsed numeric value for col, if any.
func (r RawRecord) Number(col string) (decimal.Decimal, bool) {
	n, ok := r.Numbers[col]
	return n, ok
}

// NormalizedRecord is a RawRecord with its fiscal placement resolved. This
// is the unit persisted by the chunked writer.
type NormalizedRecord struct {
	RawRecord
	FiscalYear int
	// FiscalPeriod is 1-12, or 0 when the dataset carries no sub-year period.
	FiscalPeriod int
	// Date is the civil date the fiscal placement was derived from, when one
	// existed or could be synthesized.
	Date *fiscal.Date
}

// Amount returns the record's monetary amount, zero if it failed numeric
// coercion.
func (r NormalizedRecord) Amount() decimal.Decimal {
	n, _ := r.Number(AmountColumn)
	return n
}

// ValidationIssue describes one defect found during validation. Row is nil
// for file-level (header) issues.
type ValidationIssue struct {
	Row     *int   `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// FileIssue builds a file-level issue.
func FileIssue(field, message string) ValidationIssue {
	return ValidationIssue{Field: field, Message: message}
}

// RowIssue builds a row-level issue for the given 1-based data row.
func RowIssue(row int, field, message string) ValidationIssue {
	r := row
	return ValidationIssue{Row: &r, Field: field, Message: message}
}

// UploadResult accounts for what a chunked write actually did.
type UploadResult struct {
	InsertedCount  int
	AttemptedCount int
	// FailedAtChunkIndex is the record offset of the first chunk that failed
	// to persist, nil when every chunk committed.
	FailedAtChunkIndex *int
	// AffectedFiscalYears are the distinct fiscal years of the written batch.
	AffectedFiscalYears []int
}

// DistinctYears returns the sorted distinct fiscal years of a normalized
// batch.
func DistinctYears(records []NormalizedRecord) []int {
	seen := make(map[int]bool)
	for _, rec := range records {
		seen[rec.FiscalYear] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// RunStatus tracks the lifecycle of an upload run row. A run stuck in
// processing marks an interrupted prior attempt.
type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunSuccess    RunStatus = "success"
	RunFailure    RunStatus = "failure"
)

// UploadRun is the persisted in-progress marker for one ingestion attempt.
type UploadRun struct {
	RunID         string
	DatasetType   DatasetType
	Mode          UploadMode
	Status        RunStatus
	Filename      string
	Actor         string
	AttemptedRows int
	InsertedRows  int
	Error         string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// AuditEntry summarizes one completed ingestion attempt. Entries are
// append-only; a negative RowCount denotes a pure-delete event.
type AuditEntry struct {
	AuditID     string      `json:"auditID"`
	DatasetType DatasetType `json:"datasetType"`
	Mode        UploadMode  `json:"mode"`
	RowCount    int         `json:"rowCount"`
	FiscalYear  *int        `json:"fiscalYear"`
	Filename    string      `json:"filename,omitempty"`
	Actor       string      `json:"actor"`
	CreatedAt   time.Time   `json:"createdAt"`
}
