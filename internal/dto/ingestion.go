package dto

import (
	"time"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
)

// MaxReportedIssues caps how many validation issues are echoed back to the
// caller; the remainder is summarized as a count.
const MaxReportedIssues = 100

// UploadRequest is the transport shape of one bulk ingestion request.
// Exactly one of CSV or Records must be supplied.
type UploadRequest struct {
	Mode string `json:"mode" binding:"required,oneof=append replace_year replace_table"`
	// ReplaceYear is the target fiscal year, required when mode is replace_year.
	ReplaceYear *int `json:"replaceYear,omitempty"`
	// ConfirmReplaceTable must be true when mode is replace_table. The
	// pipeline never infers confirmation.
	ConfirmReplaceTable bool `json:"confirmReplaceTable,omitempty"`
	// CSV is the raw delimited text, header row first.
	CSV string `json:"csv,omitempty"`
	// Records is the pre-parsed alternative to CSV.
	Records  []map[string]string `json:"records,omitempty"`
	Filename string              `json:"filename,omitempty"`

	// DatasetType is resolved from the URL path, not the body.
	DatasetType domain.DatasetType `json:"-"`
}

// ValidationIssueResponse mirrors a domain.ValidationIssue on the wire.
type ValidationIssueResponse struct {
	Row     *int   `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// UploadSuccessResponse is returned when the whole pipeline completed.
type UploadSuccessResponse struct {
	OK                  bool  `json:"ok"`
	InsertedCount       int   `json:"insertedCount"`
	AffectedFiscalYears []int `json:"affectedFiscalYears"`
}

// UploadFailureDetails carries partial-progress accounting for mid-write
// failures.
type UploadFailureDetails struct {
	AttemptedRows            int  `json:"attemptedRows"`
	SuccessfullyInsertedRows int  `json:"successfullyInsertedRows"`
	FailedAtIndex            *int `json:"failedAtIndex,omitempty"`
}

// UploadFailureResponse is returned for any failed ingestion attempt.
type UploadFailureResponse struct {
	OK     bool                      `json:"ok"`
	Error  string                    `json:"error"`
	Issues []ValidationIssueResponse `json:"issues,omitempty"`
	// OmittedIssueCount counts issues beyond the reporting cap.
	OmittedIssueCount int                   `json:"omittedIssueCount,omitempty"`
	Details           *UploadFailureDetails `json:"details,omitempty"`
}

// ToUploadSuccessResponse converts a domain result.
func ToUploadSuccessResponse(res *domain.UploadResult) UploadSuccessResponse {
	return UploadSuccessResponse{
		OK:                  true,
		InsertedCount:       res.InsertedCount,
		AffectedFiscalYears: res.AffectedFiscalYears,
	}
}

// ToIssueResponses converts and caps a domain issue list. The second return
// is the number of issues dropped by the cap.
func ToIssueResponses(issues []domain.ValidationIssue) ([]ValidationIssueResponse, int) {
	n := len(issues)
	omitted := 0
	if n > MaxReportedIssues {
		omitted = n - MaxReportedIssues
		n = MaxReportedIssues
	}
	out := make([]ValidationIssueResponse, n)
	for i := 0; i < n; i++ {
		out[i] = ValidationIssueResponse{
			Row:     issues[i].Row,
			Field:   issues[i].Field,
			Message: issues[i].Message,
		}
	}
	return out, omitted
}

// AuditEntryResponse is the wire shape of one audit entry.
type AuditEntryResponse struct {
	AuditID     string    `json:"auditID"`
	DatasetType string    `json:"datasetType"`
	Mode        string    `json:"mode"`
	RowCount    int       `json:"rowCount"`
	FiscalYear  *int      `json:"fiscalYear"`
	Filename    string    `json:"filename,omitempty"`
	Actor       string    `json:"actor"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToAuditEntryResponses converts a slice of domain audit entries.
func ToAuditEntryResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			AuditID:     e.AuditID,
			DatasetType: string(e.DatasetType),
			Mode:        string(e.Mode),
			RowCount:    e.RowCount,
			FiscalYear:  e.FiscalYear,
			Filename:    e.Filename,
			Actor:       e.Actor,
			CreatedAt:   e.CreatedAt,
		}
	}
	return out
}
