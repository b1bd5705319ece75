package services

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	"github.com/opengovtools/fiscal_transparency_app/internal/utils/fiscal"
)

// placeholderValues are department/vendor/source values that carry no
// information and are rejected outright.
var placeholderValues = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"none": true,
}

func isPlaceholder(v string) bool {
	return placeholderValues[strings.ToLower(strings.TrimSpace(v))]
}

// parseLooseAmount parses a locale-tolerant number: thousands-separator
// commas and a leading currency sign are stripped before parsing.
func parseLooseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

// ValidateBatch checks one upload batch against the dataset's column schema.
//
// Header checks are fatal for the batch: duplicate or missing required
// columns return immediately with no records. Row checks never stop the
// batch; every defect is collected as a ValidationIssue and the row is still
// returned (the orchestrator refuses to write any batch with issues).
//
// The second return value is the sorted set of distinct fiscal years
// supplied in the batch, used by the orchestrator for mode preconditions.
func ValidateBatch(datasetType domain.DatasetType, header []string, rows [][]string) ([]domain.RawRecord, []int, []domain.ValidationIssue) {
	schema := domain.Schemas[datasetType]

	columns := make([]string, len(header))
	counts := make(map[string]int, len(header))
	for i, col := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(col))
		counts[columns[i]]++
	}

	var issues []domain.ValidationIssue
	for col, n := range counts {
		if n > 1 {
			issues = append(issues, domain.FileIssue(col, "column appears more than once"))
		}
	}
	for _, col := range schema.Required {
		if counts[col] == 0 {
			issues = append(issues, domain.FileIssue(col, "required column is missing"))
		}
	}
	if len(issues) > 0 {
		// no point validating rows against a broken header
		sortIssues(issues)
		return nil, nil, issues
	}

	records := make([]domain.RawRecord, 0, len(rows))
	yearSet := make(map[int]bool)
	for i, row := range rows {
		rowNum := i + 1
		rec := domain.RawRecord{
			Row:     rowNum,
			Fields:  make(map[string]*string, len(columns)),
			Numbers: make(map[string]decimal.Decimal),
		}
		for j, col := range columns {
			var val *string
			if j < len(row) {
				if s := strings.TrimSpace(row[j]); s != "" {
					val = &s
				}
			}
			rec.Fields[col] = val
		}

		// numeric coercion: a bad value becomes an issue, the cell stays null
		for _, col := range schema.Numeric {
			v := rec.Fields[col]
			if v == nil {
				continue
			}
			n, err := parseLooseAmount(*v)
			if err != nil {
				issues = append(issues, domain.RowIssue(rowNum, col, "value is not a number: "+*v))
				continue
			}
			rec.Numbers[col] = n
		}

		for _, col := range schema.Required {
			if rec.Fields[col] == nil {
				issues = append(issues, domain.RowIssue(rowNum, col, "required value is missing"))
			}
		}

		if schema.DateColumn != "" {
			if v := rec.Fields[schema.DateColumn]; v != nil {
				if _, err := fiscal.ParseDate(*v); err != nil {
					issues = append(issues, domain.RowIssue(rowNum, schema.DateColumn, "invalid calendar date: "+*v))
				}
			}
		}

		if schema.RejectNegativeAmount {
			if n, ok := rec.Number(domain.AmountColumn); ok && n.IsNegative() {
				issues = append(issues, domain.RowIssue(rowNum, domain.AmountColumn, "amount may not be negative"))
			}
		}

		for _, col := range schema.PlaceholderChecked {
			if v := rec.Fields[col]; v != nil && isPlaceholder(*v) {
				issues = append(issues, domain.RowIssue(rowNum, col, "placeholder value is not allowed: "+*v))
			}
		}

		if n, ok := rec.Number(domain.FiscalYearColumn); ok {
			if !n.IsInteger() {
				issues = append(issues, domain.RowIssue(rowNum, domain.FiscalYearColumn, "fiscal year must be a whole number"))
			} else {
				yearSet[int(n.IntPart())] = true
			}
		}

		records = append(records, rec)
	}

	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)
	sortIssues(issues)
	return records, years, issues
}

// sortIssues orders issues file-level first, then by row number, for a
// stable report regardless of check ordering.
func sortIssues(issues []domain.ValidationIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i].Row, issues[j].Row
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return *a < *b
		}
	})
}
