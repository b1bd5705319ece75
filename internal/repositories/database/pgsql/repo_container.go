package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"

	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
)

// NewRepositoryProvider wires every pgsql repository over one shared pool.
func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		DatasetRepo:  newPgxDatasetRepository(dbPool),
		RollupRepo:   newPgxRollupRepository(dbPool),
		AuditRepo:    newPgxAuditRepository(dbPool),
		RunRepo:      newPgxRunRepository(dbPool),
		SettingsRepo: newPgxSettingsRepository(dbPool),
	}
}
