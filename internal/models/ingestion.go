package models

import "time"

// IngestionAudit is the persisted shape of one audit-trail row. Rows are
// append-only; a negative RowCount marks a pure-delete event.
type IngestionAudit struct {
	AuditID     string    `json:"auditID"` // Primary Key (UUID)
	DatasetType string    `json:"datasetType"`
	Mode        string    `json:"mode"`
	RowCount    int       `json:"rowCount"`
	FiscalYear  *int      `json:"fiscalYear"` // Nullable when ambiguous
	Filename    *string   `json:"filename"`   // Nullable
	Actor       string    `json:"actor"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UploadRun is the persisted in-progress marker for one ingestion run. A
// row left in processing status flags an interrupted attempt.
type UploadRun struct {
	RunID         string     `json:"runID"` // Primary Key (UUID)
	DatasetType   string     `json:"datasetType"`
	Mode          string     `json:"mode"`
	Status        string     `json:"status"`
	Filename      *string    `json:"filename"` // Nullable
	Actor         string     `json:"actor"`
	AttemptedRows int        `json:"attemptedRows"`
	InsertedRows  int        `json:"insertedRows"`
	Error         *string    `json:"error"` // Nullable
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt"` // Nullable until the run ends
}
