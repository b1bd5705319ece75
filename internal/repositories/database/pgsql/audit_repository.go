package pgsql

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opengovtools/fiscal_transparency_app/internal/apperrors"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
	"github.com/opengovtools/fiscal_transparency_app/internal/models"
	"github.com/opengovtools/fiscal_transparency_app/internal/utils/mapping"
)

// PgxAuditRepository appends and lists immutable ingestion audit rows.
// There is deliberately no update or delete path.
type PgxAuditRepository struct {
	BaseRepository
}

func newPgxAuditRepository(pool *pgxpool.Pool) portsrepo.AuditRepository {
	return &PgxAuditRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.AuditRepository = (*PgxAuditRepository)(nil)

// SaveEntry appends one audit row.
func (r *PgxAuditRepository) SaveEntry(ctx context.Context, entry domain.AuditEntry) error {
	m := mapping.ToModelAudit(entry)
	query := `
		INSERT INTO ingestion_audit (audit_id, dataset_type, mode, row_count, fiscal_year, filename, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.Pool.Exec(ctx, query,
		m.AuditID, m.DatasetType, m.Mode, m.RowCount, m.FiscalYear, m.Filename, m.Actor, m.CreatedAt)
	if err != nil {
		return apperrors.NewAppError(500, "failed to insert audit entry "+m.AuditID, err)
	}
	return nil
}

// ListEntries returns audit rows newest first.
func (r *PgxAuditRepository) ListEntries(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	query := `
		SELECT audit_id, dataset_type, mode, row_count, fiscal_year, filename, actor, created_at
		FROM ingestion_audit
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2;
	`
	rows, err := r.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list audit entries", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var m models.IngestionAudit
		if err := rows.Scan(&m.AuditID, &m.DatasetType, &m.Mode, &m.RowCount, &m.FiscalYear, &m.Filename, &m.Actor, &m.CreatedAt); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan audit entry row", err)
		}
		entries = append(entries, mapping.ToDomainAudit(m))
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed reading audit entry rows", err)
	}
	return entries, nil
}
