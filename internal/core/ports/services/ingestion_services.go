package services

import (
	"context"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	"github.com/opengovtools/fiscal_transparency_app/internal/dto"
)

// IngestionSvcFacade is the entry point for bulk dataset uploads.
type IngestionSvcFacade interface {
	// Ingest runs the full pipeline (parse, validate, normalize, write,
	// recompute, audit) for one upload request.
	Ingest(ctx context.Context, req dto.UploadRequest, actor string) (*domain.UploadResult, error)

	// PurgeFiscalYear deletes one fiscal year from a dataset, purges its
	// rollups and records a negative-count audit entry.
	PurgeFiscalYear(ctx context.Context, datasetType domain.DatasetType, fiscalYear int, actor string) (int64, error)

	// DatasetYears lists the fiscal years currently present in a dataset.
	DatasetYears(ctx context.Context, datasetType domain.DatasetType) ([]int, error)
}

// RollupSvcFacade recomputes derived aggregates after a write.
type RollupSvcFacade interface {
	// Recompute rebuilds the dataset's dependent rollups for the affected
	// fiscal years, newest first. Any rebuild failure is fatal for the run.
	Recompute(ctx context.Context, datasetType domain.DatasetType, fiscalYears []int, tableReplaced bool) error

	// PurgeYears drops rollup rows for fiscal years removed from the
	// dataset. Best-effort.
	PurgeYears(ctx context.Context, datasetType domain.DatasetType, fiscalYears []int) error
}

// AuditSvcFacade records and lists ingestion audit entries.
type AuditSvcFacade interface {
	// Record appends one audit entry. Fire-and-forget: failures are logged
	// and never propagated.
	Record(ctx context.Context, entry domain.AuditEntry)

	// ListEntries returns recent audit entries, newest first.
	ListEntries(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error)
}
