package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
	portssvc "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/services"
	"github.com/opengovtools/fiscal_transparency_app/internal/middleware"
)

// rollupService keeps the derived aggregate tables consistent with the raw
// dataset rows.
type rollupService struct {
	rollupRepo  portsrepo.RollupRepository
	datasetRepo portsrepo.DatasetReader
}

// NewRollupService creates the rollup recomputation coordinator.
func NewRollupService(rollupRepo portsrepo.RollupRepository, datasetRepo portsrepo.DatasetReader) portssvc.RollupSvcFacade {
	return &rollupService{rollupRepo: rollupRepo, datasetRepo: datasetRepo}
}

var _ portssvc.RollupSvcFacade = (*rollupService)(nil)

// Recompute rebuilds the dataset's dependent rollups for every affected
// fiscal year, newest first. A rebuild failure is fatal: stale rollups feed
// directly into public-facing totals. The trailing materialized-view refresh
// is best-effort only.
func (s *rollupService) Recompute(ctx context.Context, datasetType domain.DatasetType, fiscalYears []int, tableReplaced bool) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	switch datasetType {
	case domain.DatasetTransactions:
		for _, year := range newestFirst(fiscalYears) {
			if err := s.rollupRepo.RebuildTransactionDepartment(ctx, year); err != nil {
				return &RecomputeError{DatasetType: datasetType, FiscalYear: year, Err: err}
			}
			if err := s.rollupRepo.RebuildTransactionVendor(ctx, year); err != nil {
				return &RecomputeError{DatasetType: datasetType, FiscalYear: year, Err: err}
			}
		}

	case domain.DatasetBudgets, domain.DatasetActuals:
		years := fiscalYears
		if tableReplaced {
			// the combined rollup joins budgets and actuals, so a table
			// replacement has to rebuild every year either table still has
			union, err := s.budgetActualYearUnion(ctx)
			if err != nil {
				return &RecomputeError{DatasetType: datasetType, Err: err}
			}
			years = union
		}
		for _, year := range newestFirst(years) {
			if err := s.rollupRepo.RebuildBudgetActualDepartment(ctx, year); err != nil {
				return &RecomputeError{DatasetType: datasetType, FiscalYear: year, Err: err}
			}
		}

	case domain.DatasetRevenues:
		// revenues feed the portal pages directly, no dependent rollup
	}

	if err := s.rollupRepo.RefreshSummaryViews(ctx); err != nil {
		logger.Warn("summary view refresh failed, views will lag until the next run",
			slog.String("dataset", string(datasetType)), slog.String("error", err.Error()))
	}
	return nil
}

// PurgeYears drops rollup rows for fiscal years removed from the dataset.
func (s *rollupService) PurgeYears(ctx context.Context, datasetType domain.DatasetType, fiscalYears []int) error {
	if len(fiscalYears) == 0 {
		return nil
	}
	return s.rollupRepo.PurgeYears(ctx, datasetType, fiscalYears)
}

// budgetActualYearUnion returns every fiscal year present in budgets or
// actuals, deduplicated.
func (s *rollupService) budgetActualYearUnion(ctx context.Context) ([]int, error) {
	seen := make(map[int]bool)
	for _, dt := range []domain.DatasetType{domain.DatasetBudgets, domain.DatasetActuals} {
		years, err := s.datasetRepo.DistinctFiscalYears(ctx, dt)
		if err != nil {
			return nil, err
		}
		for _, y := range years {
			seen[y] = true
		}
	}
	union := make([]int, 0, len(seen))
	for y := range seen {
		union = append(union, y)
	}
	sort.Ints(union)
	return union, nil
}

func newestFirst(years []int) []int {
	out := make([]int, len(years))
	copy(out, years)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
