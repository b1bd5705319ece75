package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	"github.com/opengovtools/fiscal_transparency_app/internal/utils/fiscal"
)

// NormalizeRecords resolves the fiscal placement of every record in a
// validated batch. Records that cannot be resolved are surfaced as issues,
// never silently dropped; the orchestrator treats any issue as fatal before
// the write.
//
// Per-dataset rules:
//   - budgets: the supplied fiscal_year is trusted as-is (budgets are
//     authored per fiscal year), only numeric coercion applies.
//   - transactions: fiscal year and period are always derived from the date
//     column, overriding any supplied fiscal_year.
//   - actuals/revenues: prefer an explicit date; otherwise synthesize one
//     from a "YYYY-MM" period string anchored to the configured start day;
//     otherwise fall back to the supplied numeric fiscal_year/fiscal_period.
func NormalizeRecords(datasetType domain.DatasetType, records []domain.RawRecord, cfg fiscal.Config) ([]domain.NormalizedRecord, []domain.ValidationIssue) {
	schema := domain.Schemas[datasetType]
	normalized := make([]domain.NormalizedRecord, 0, len(records))
	var issues []domain.ValidationIssue

	for _, rec := range records {
		norm, issue := normalizeRecord(datasetType, schema, rec, cfg)
		if issue != nil {
			issues = append(issues, *issue)
			continue
		}
		normalized = append(normalized, norm)
	}
	sortIssues(issues)
	return normalized, issues
}

func normalizeRecord(datasetType domain.DatasetType, schema domain.ColumnSchema, rec domain.RawRecord, cfg fiscal.Config) (domain.NormalizedRecord, *domain.ValidationIssue) {
	norm := domain.NormalizedRecord{RawRecord: rec}

	switch datasetType {
	case domain.DatasetBudgets:
		year, ok := suppliedFiscalYear(rec)
		if !ok {
			issue := domain.RowIssue(rec.Row, domain.FiscalYearColumn, "cannot resolve fiscal year")
			return norm, &issue
		}
		norm.FiscalYear = year
		return norm, nil

	case domain.DatasetTransactions:
		d, err := fiscal.ParseDate(rec.Text(schema.DateColumn))
		if err != nil {
			issue := domain.RowIssue(rec.Row, schema.DateColumn, "cannot resolve fiscal year: "+err.Error())
			return norm, &issue
		}
		placeByDate(&norm, d, cfg)
		return norm, nil

	default: // actuals, revenues
		if raw := rec.Text(schema.DateColumn); raw != "" {
			if d, err := fiscal.ParseDate(raw); err == nil {
				placeByDate(&norm, d, cfg)
				return norm, nil
			}
		}
		if raw := rec.Text(schema.PeriodColumn); raw != "" {
			if year, month, ok := parsePeriodString(raw); ok {
				placeByDate(&norm, cfg.AnchorDate(year, month), cfg)
				return norm, nil
			}
		}
		year, ok := suppliedFiscalYear(rec)
		if !ok {
			issue := domain.RowIssue(rec.Row, domain.FiscalYearColumn, "cannot resolve fiscal year")
			return norm, &issue
		}
		norm.FiscalYear = year
		if n, ok := rec.Number(domain.FiscalPeriodColumn); ok && n.IsInteger() {
			period := int(n.IntPart())
			if period < 1 || period > 12 {
				issue := domain.RowIssue(rec.Row, domain.FiscalPeriodColumn, "fiscal period must be between 1 and 12")
				return norm, &issue
			}
			norm.FiscalPeriod = period
		}
		return norm, nil
	}
}

// placeByDate derives fiscal year and period from a civil date.
func placeByDate(norm *domain.NormalizedRecord, d fiscal.Date, cfg fiscal.Config) {
	norm.Date = &d
	norm.FiscalYear = cfg.YearOf(d)
	norm.FiscalPeriod = cfg.PeriodOf(d)
}

// suppliedFiscalYear reads the batch-supplied fiscal_year, if it coerced to
// a whole number during validation.
func suppliedFiscalYear(rec domain.RawRecord) (int, bool) {
	n, ok := rec.Number(domain.FiscalYearColumn)
	if !ok || !n.IsInteger() {
		return 0, false
	}
	return int(n.IntPart()), true
}

// parsePeriodString parses a "YYYY-MM" or "YYYY-M" accounting period.
func parsePeriodString(s string) (int, time.Month, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1000 || year > 9999 {
		return 0, 0, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}
