package pgsql

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opengovtools/fiscal_transparency_app/internal/apperrors"
	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
	"github.com/opengovtools/fiscal_transparency_app/internal/utils/fiscal"
)

const (
	settingFiscalStartMonth = "fiscal_start_month"
	settingFiscalStartDay   = "fiscal_start_day"
)

// PgxSettingsRepository reads portal-level configuration rows managed by
// the portal's admin UI.
type PgxSettingsRepository struct {
	BaseRepository
}

func newPgxSettingsRepository(pool *pgxpool.Pool) portsrepo.SettingsRepository {
	return &PgxSettingsRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.SettingsRepository = (*PgxSettingsRepository)(nil)

// FiscalConfig loads the portal's fiscal start. Missing or non-numeric
// settings fall back to the supplied default; out-of-range values are
// clamped rather than rejected.
func (r *PgxSettingsRepository) FiscalConfig(ctx context.Context, fallback fiscal.Config) (fiscal.Config, error) {
	query := `
		SELECT setting_key, setting_value
		FROM portal_settings
		WHERE setting_key IN ($1, $2);
	`
	rows, err := r.Pool.Query(ctx, query, settingFiscalStartMonth, settingFiscalStartDay)
	if err != nil {
		return fallback, apperrors.NewAppError(500, "failed to read portal settings", err)
	}
	defer rows.Close()

	startMonth, startDay := fallback.StartMonth, fallback.StartDay
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fallback, apperrors.NewAppError(500, "failed to scan portal setting row", err)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue // non-numeric setting, keep the fallback
		}
		switch key {
		case settingFiscalStartMonth:
			startMonth = n
		case settingFiscalStartDay:
			startDay = n
		}
	}
	if err := rows.Err(); err != nil {
		return fallback, apperrors.NewAppError(500, "failed reading portal setting rows", err)
	}
	return fiscal.Clamped(startMonth, startDay), nil
}
