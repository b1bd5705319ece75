package pgsql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opengovtools/fiscal_transparency_app/internal/apperrors"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
)

// datasetTable binds a DatasetType to its physical table. The closed map
// doubles as the whitelist for interpolated table names; dataset types
// never reach SQL as raw caller input.
type datasetTable struct {
	name    string
	columns []string
	values  func(rec domain.NormalizedRecord) []any
}

var datasetTables = map[domain.DatasetType]datasetTable{
	domain.DatasetBudgets: {
		name:    "budgets",
		columns: []string{"fiscal_year", "department", "category", "amount"},
		values: func(rec domain.NormalizedRecord) []any {
			return []any{rec.FiscalYear, rec.Text("department"), rec.Text("category"), rec.Amount()}
		},
	},
	domain.DatasetActuals: {
		name:    "actuals",
		columns: []string{"fiscal_year", "fiscal_period", "record_date", "department", "category", "amount"},
		values: func(rec domain.NormalizedRecord) []any {
			return []any{rec.FiscalYear, periodValue(rec), dateValue(rec), rec.Text("department"), rec.Text("category"), rec.Amount()}
		},
	},
	domain.DatasetTransactions: {
		name:    "transactions",
		columns: []string{"fiscal_year", "fiscal_period", "txn_date", "department", "vendor", "amount", "description"},
		values: func(rec domain.NormalizedRecord) []any {
			return []any{rec.FiscalYear, periodValue(rec), dateValue(rec), rec.Text("department"), rec.Text("vendor"), rec.Amount(), nullableText(rec, "description")}
		},
	},
	domain.DatasetRevenues: {
		name:    "revenues",
		columns: []string{"fiscal_year", "fiscal_period", "record_date", "source", "category", "amount"},
		values: func(rec domain.NormalizedRecord) []any {
			return []any{rec.FiscalYear, periodValue(rec), dateValue(rec), rec.Text("source"), rec.Text("category"), rec.Amount()}
		},
	},
}

func periodValue(rec domain.NormalizedRecord) any {
	if rec.FiscalPeriod > 0 {
		return rec.FiscalPeriod
	}
	return nil
}

func dateValue(rec domain.NormalizedRecord) any {
	if rec.Date != nil {
		return rec.Date.String()
	}
	return nil
}

func nullableText(rec domain.NormalizedRecord, col string) any {
	if v := rec.Fields[col]; v != nil {
		return *v
	}
	return nil
}

// PgxDatasetRepository persists raw dataset rows.
type PgxDatasetRepository struct {
	BaseRepository
}

// newPgxDatasetRepository creates a repository over the raw dataset tables.
func newPgxDatasetRepository(pool *pgxpool.Pool) portsrepo.DatasetRepositoryFacade {
	return &PgxDatasetRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.DatasetRepositoryFacade = (*PgxDatasetRepository)(nil)

// InsertChunk persists one bounded batch of normalized records inside a
// single database transaction: the chunk commits or fails as a unit.
func (r *PgxDatasetRepository) InsertChunk(ctx context.Context, datasetType domain.DatasetType, records []domain.NormalizedRecord, actor string, at time.Time) error {
	table, ok := datasetTables[datasetType]
	if !ok {
		return apperrors.NewAppError(500, "no table mapping for dataset "+string(datasetType), nil)
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx) // no-op once committed

	placeholders := make([]string, 0, len(table.columns)+3)
	for i := 0; i < len(table.columns)+3; i++ {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (record_id, %s, created_at, created_by) VALUES (%s);",
		table.name, strings.Join(table.columns, ", "), strings.Join(placeholders, ", "),
	)

	batch := &pgx.Batch{}
	for _, rec := range records {
		args := make([]any, 0, len(table.columns)+3)
		args = append(args, uuid.NewString())
		args = append(args, table.values(rec)...)
		args = append(args, at, actor)
		batch.Queue(query, args...)
	}

	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return apperrors.NewAppError(500, fmt.Sprintf("failed to insert batch into %s", table.name), err)
	}
	return r.Commit(ctx, tx)
}

// DeleteFiscalYear removes every row of the dataset for one fiscal year.
func (r *PgxDatasetRepository) DeleteFiscalYear(ctx context.Context, datasetType domain.DatasetType, fiscalYear int) (int64, error) {
	table, ok := datasetTables[datasetType]
	if !ok {
		return 0, apperrors.NewAppError(500, "no table mapping for dataset "+string(datasetType), nil)
	}
	tag, err := r.Pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE fiscal_year = $1;", table.name), fiscalYear)
	if err != nil {
		return 0, apperrors.NewAppError(500, fmt.Sprintf("failed to delete fiscal year %d from %s", fiscalYear, table.name), err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAll removes every row of the dataset.
func (r *PgxDatasetRepository) DeleteAll(ctx context.Context, datasetType domain.DatasetType) (int64, error) {
	table, ok := datasetTables[datasetType]
	if !ok {
		return 0, apperrors.NewAppError(500, "no table mapping for dataset "+string(datasetType), nil)
	}
	tag, err := r.Pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s;", table.name))
	if err != nil {
		return 0, apperrors.NewAppError(500, "failed to clear table "+table.name, err)
	}
	return tag.RowsAffected(), nil
}

// DistinctFiscalYears lists the fiscal years currently present, newest first.
func (r *PgxDatasetRepository) DistinctFiscalYears(ctx context.Context, datasetType domain.DatasetType) ([]int, error) {
	table, ok := datasetTables[datasetType]
	if !ok {
		return nil, apperrors.NewAppError(500, "no table mapping for dataset "+string(datasetType), nil)
	}
	rows, err := r.Pool.Query(ctx, fmt.Sprintf("SELECT DISTINCT fiscal_year FROM %s ORDER BY fiscal_year DESC;", table.name))
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list fiscal years for "+table.name, err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan fiscal year row", err)
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed reading fiscal year rows", err)
	}
	return years, nil
}
