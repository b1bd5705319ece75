package pgsql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opengovtools/fiscal_transparency_app/internal/apperrors"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
)

// rollupTablesByDataset maps each dataset to the rollup tables derived from
// it, used when purging years that disappeared from the source.
var rollupTablesByDataset = map[domain.DatasetType][]string{
	domain.DatasetTransactions: {"transaction_rollup_department", "transaction_rollup_vendor"},
	domain.DatasetBudgets:      {"budget_actual_rollup"},
	domain.DatasetActuals:      {"budget_actual_rollup"},
}

// PgxRollupRepository rebuilds the derived aggregate tables from the raw
// dataset rows. Each rebuild is delete-then-insert within one transaction so
// readers never observe a half-built year.
type PgxRollupRepository struct {
	BaseRepository
}

func newPgxRollupRepository(pool *pgxpool.Pool) portsrepo.RollupRepository {
	return &PgxRollupRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.RollupRepository = (*PgxRollupRepository)(nil)

// rebuildYear replaces one fiscal year of a rollup table with freshly
// aggregated rows.
func (r *PgxRollupRepository) rebuildYear(ctx context.Context, table, insertQuery string, fiscalYear int) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE fiscal_year = $1;", table), fiscalYear); err != nil {
		return apperrors.NewAppError(500, fmt.Sprintf("failed to clear %s for fiscal year %d", table, fiscalYear), err)
	}
	if _, err := tx.Exec(ctx, insertQuery, fiscalYear); err != nil {
		return apperrors.NewAppError(500, fmt.Sprintf("failed to rebuild %s for fiscal year %d", table, fiscalYear), err)
	}
	return r.Commit(ctx, tx)
}

// RebuildTransactionDepartment recomputes per-department transaction totals
// for one fiscal year.
func (r *PgxRollupRepository) RebuildTransactionDepartment(ctx context.Context, fiscalYear int) error {
	query := `
		INSERT INTO transaction_rollup_department (fiscal_year, department, total_amount, txn_count, refreshed_at)
		SELECT fiscal_year, department, SUM(amount), COUNT(*), NOW()
		FROM transactions
		WHERE fiscal_year = $1
		GROUP BY fiscal_year, department;
	`
	return r.rebuildYear(ctx, "transaction_rollup_department", query, fiscalYear)
}

// RebuildTransactionVendor recomputes per-vendor transaction totals for one
// fiscal year.
func (r *PgxRollupRepository) RebuildTransactionVendor(ctx context.Context, fiscalYear int) error {
	query := `
		INSERT INTO transaction_rollup_vendor (fiscal_year, vendor, total_amount, txn_count, refreshed_at)
		SELECT fiscal_year, vendor, SUM(amount), COUNT(*), NOW()
		FROM transactions
		WHERE fiscal_year = $1
		GROUP BY fiscal_year, vendor;
	`
	return r.rebuildYear(ctx, "transaction_rollup_vendor", query, fiscalYear)
}

// RebuildBudgetActualDepartment recomputes the combined budget/actual
// department rollup for one fiscal year. The rollup joins both tables, so
// it is rebuilt whenever either side changes.
func (r *PgxRollupRepository) RebuildBudgetActualDepartment(ctx context.Context, fiscalYear int) error {
	query := `
		INSERT INTO budget_actual_rollup (fiscal_year, department, budget_total, actual_total, refreshed_at)
		SELECT COALESCE(b.fiscal_year, a.fiscal_year),
		       COALESCE(b.department, a.department),
		       COALESCE(b.total, 0),
		       COALESCE(a.total, 0),
		       NOW()
		FROM (
			SELECT fiscal_year, department, SUM(amount) AS total
			FROM budgets WHERE fiscal_year = $1 GROUP BY fiscal_year, department
		) b
		FULL OUTER JOIN (
			SELECT fiscal_year, department, SUM(amount) AS total
			FROM actuals WHERE fiscal_year = $1 GROUP BY fiscal_year, department
		) a ON b.department = a.department;
	`
	return r.rebuildYear(ctx, "budget_actual_rollup", query, fiscalYear)
}

// PurgeYears drops rollup rows for fiscal years removed from the dataset's
// source table.
func (r *PgxRollupRepository) PurgeYears(ctx context.Context, datasetType domain.DatasetType, fiscalYears []int) error {
	tables := rollupTablesByDataset[datasetType]
	if len(tables) == 0 || len(fiscalYears) == 0 {
		return nil
	}
	for _, table := range tables {
		if _, err := r.Pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE fiscal_year = ANY($1);", table), fiscalYears); err != nil {
			return apperrors.NewAppError(500, "failed to purge rollup rows from "+table, err)
		}
	}
	return nil
}

// RefreshSummaryViews refreshes the UI-facing materialized view. Callers
// treat failures as non-fatal.
func (r *PgxRollupRepository) RefreshSummaryViews(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY portal_financial_summary;"); err != nil {
		return apperrors.NewAppError(500, "failed to refresh portal_financial_summary", err)
	}
	return nil
}
