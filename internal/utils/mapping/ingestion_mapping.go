package mapping

import (
	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	"github.com/opengovtools/fiscal_transparency_app/internal/models"
)

// ToModelAudit converts a domain audit entry to its persisted shape.
func ToModelAudit(entry domain.AuditEntry) models.IngestionAudit {
	return models.IngestionAudit{
		AuditID:     entry.AuditID,
		DatasetType: string(entry.DatasetType),
		Mode:        string(entry.Mode),
		RowCount:    entry.RowCount,
		FiscalYear:  entry.FiscalYear,
		Filename:    nullableString(entry.Filename),
		Actor:       entry.Actor,
		CreatedAt:   entry.CreatedAt,
	}
}

// ToDomainAudit converts a persisted audit row back to the domain shape.
func ToDomainAudit(m models.IngestionAudit) domain.AuditEntry {
	entry := domain.AuditEntry{
		AuditID:     m.AuditID,
		DatasetType: domain.DatasetType(m.DatasetType),
		Mode:        domain.UploadMode(m.Mode),
		RowCount:    m.RowCount,
		FiscalYear:  m.FiscalYear,
		Actor:       m.Actor,
		CreatedAt:   m.CreatedAt,
	}
	if m.Filename != nil {
		entry.Filename = *m.Filename
	}
	return entry
}

// ToModelRun converts a domain upload run to its persisted shape.
func ToModelRun(run domain.UploadRun) models.UploadRun {
	return models.UploadRun{
		RunID:         run.RunID,
		DatasetType:   string(run.DatasetType),
		Mode:          string(run.Mode),
		Status:        string(run.Status),
		Filename:      nullableString(run.Filename),
		Actor:         run.Actor,
		AttemptedRows: run.AttemptedRows,
		InsertedRows:  run.InsertedRows,
		Error:         nullableString(run.Error),
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
