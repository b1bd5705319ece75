package pgsql

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opengovtools/fiscal_transparency_app/internal/apperrors"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
	"github.com/opengovtools/fiscal_transparency_app/internal/utils/mapping"
)

// PgxRunRepository persists the per-run in-progress marker.
type PgxRunRepository struct {
	BaseRepository
}

func newPgxRunRepository(pool *pgxpool.Pool) portsrepo.RunRepository {
	return &PgxRunRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.RunRepository = (*PgxRunRepository)(nil)

// SaveRun inserts the marker row for a starting run.
func (r *PgxRunRepository) SaveRun(ctx context.Context, run domain.UploadRun) error {
	m := mapping.ToModelRun(run)
	query := `
		INSERT INTO upload_runs (run_id, dataset_type, mode, status, filename, actor, attempted_rows, inserted_rows, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.Pool.Exec(ctx, query,
		m.RunID, m.DatasetType, m.Mode, m.Status, m.Filename, m.Actor,
		m.AttemptedRows, m.InsertedRows, m.Error, m.StartedAt, m.FinishedAt)
	if err != nil {
		return apperrors.NewAppError(500, "failed to insert upload run "+m.RunID, err)
	}
	return nil
}

// FinishRun finalizes the marker with the run's outcome.
func (r *PgxRunRepository) FinishRun(ctx context.Context, runID string, status domain.RunStatus, insertedRows int, errMsg string) error {
	var errVal *string
	if errMsg != "" {
		errVal = &errMsg
	}
	query := `
		UPDATE upload_runs
		SET status = $2, inserted_rows = $3, error = $4, finished_at = NOW()
		WHERE run_id = $1;
	`
	if _, err := r.Pool.Exec(ctx, query, runID, string(status), insertedRows, errVal); err != nil {
		return apperrors.NewAppError(500, "failed to finalize upload run "+runID, err)
	}
	return nil
}
