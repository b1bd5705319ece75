package repositories

import (
	"context"
	"time"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	"github.com/opengovtools/fiscal_transparency_app/internal/utils/fiscal"
)

// DatasetReader defines read operations against the raw dataset tables.
type DatasetReader interface {
	// DistinctFiscalYears lists the fiscal years currently present in the
	// dataset's table, newest first.
	DistinctFiscalYears(ctx context.Context, datasetType domain.DatasetType) ([]int, error)
}

// DatasetWriter defines the destructive and additive operations the upload
// orchestrator performs against the raw dataset tables.
type DatasetWriter interface {
	// InsertChunk persists one bounded batch of normalized records. The
	// whole chunk commits or fails as a unit.
	InsertChunk(ctx context.Context, datasetType domain.DatasetType, records []domain.NormalizedRecord, actor string, at time.Time) error

	// DeleteFiscalYear removes every row of the dataset for one fiscal year
	// and returns the number of rows removed.
	DeleteFiscalYear(ctx context.Context, datasetType domain.DatasetType, fiscalYear int) (int64, error)

	// DeleteAll removes every row of the dataset and returns the number of
	// rows removed.
	DeleteAll(ctx context.Context, datasetType domain.DatasetType) (int64, error)
}

// DatasetRepositoryFacade combines dataset read and write operations.
type DatasetRepositoryFacade interface {
	DatasetReader
	DatasetWriter
}

// RollupRepository rebuilds and purges the derived aggregate tables.
type RollupRepository interface {
	// RebuildTransactionDepartment recomputes the per-department transaction
	// rollup for one fiscal year.
	RebuildTransactionDepartment(ctx context.Context, fiscalYear int) error

	// RebuildTransactionVendor recomputes the per-vendor transaction rollup
	// for one fiscal year.
	RebuildTransactionVendor(ctx context.Context, fiscalYear int) error

	// RebuildBudgetActualDepartment recomputes the combined budget/actual
	// department rollup for one fiscal year.
	RebuildBudgetActualDepartment(ctx context.Context, fiscalYear int) error

	// PurgeYears drops rollup rows for fiscal years that no longer exist in
	// the dataset's source table.
	PurgeYears(ctx context.Context, datasetType domain.DatasetType, fiscalYears []int) error

	// RefreshSummaryViews refreshes the UI-facing materialized views.
	// Best-effort; callers log failures and continue.
	RefreshSummaryViews(ctx context.Context) error
}

// AuditRepository appends and lists immutable ingestion audit entries.
type AuditRepository interface {
	SaveEntry(ctx context.Context, entry domain.AuditEntry) error
	ListEntries(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error)
}

// RunRepository persists the in-progress marker for each ingestion run.
type RunRepository interface {
	SaveRun(ctx context.Context, run domain.UploadRun) error
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, insertedRows int, errMsg string) error
}

// SettingsRepository reads portal-level configuration.
type SettingsRepository interface {
	// FiscalConfig loads the portal's fiscal start month/day, falling back
	// to the supplied default when unset. Out-of-range values are clamped.
	FiscalConfig(ctx context.Context, fallback fiscal.Config) (fiscal.Config, error)
}
