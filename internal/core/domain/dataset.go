package domain

import "fmt"

// DatasetType identifies one of the portal's ingestable financial tables.
type DatasetType string

const (
	DatasetBudgets      DatasetType = "budgets"
	DatasetActuals      DatasetType = "actuals"
	DatasetTransactions DatasetType = "transactions"
	DatasetRevenues     DatasetType = "revenues"
)

// ParseDatasetType validates a raw dataset name against the closed enumeration.
func ParseDatasetType(s string) (DatasetType, error) {
	dt := DatasetType(s)
	if _, ok := Schemas[dt]; !ok {
		return "", fmt.Errorf("unknown dataset type %q", s)
	}
	return dt, nil
}

// ColumnSchema declares the expected shape of one dataset's upload file.
// Schemas are fixed per deployment and never mutated at runtime.
type ColumnSchema struct {
	// Required columns must each appear exactly once in the header.
	Required []string
	// Numeric columns are coerced to decimals; unparseable values become
	// row-level issues, not aborted rows.
	Numeric []string
	// DateColumn, when set, names the column holding a civil date.
	DateColumn string
	// PeriodColumn, when set, names a "YYYY-MM" period column used to
	// synthesize a date when DateColumn is empty.
	PeriodColumn string
	// RequireDate marks the date column as mandatory per row.
	RequireDate bool
	// RejectNegativeAmount rejects rows whose amount is below zero.
	RejectNegativeAmount bool
	// PlaceholderChecked lists columns whose values may not be empty or a
	// placeholder like "n/a" or "none".
	PlaceholderChecked []string
}

// AmountColumn is the monetary column shared by every dataset.
const AmountColumn = "amount"

// FiscalYearColumn and FiscalPeriodColumn are the derived columns persisted
// alongside every record.
const (
	FiscalYearColumn   = "fiscal_year"
	FiscalPeriodColumn = "fiscal_period"
)

// Schemas maps every DatasetType to its column schema. It is validated once
// at startup by ValidateSchemas.
var Schemas = map[DatasetType]ColumnSchema{
	DatasetBudgets: {
		Required:             []string{"fiscal_year", "department", "category", "amount"},
		Numeric:              []string{"fiscal_year", "amount"},
		RejectNegativeAmount: true,
		PlaceholderChecked:   []string{"department"},
	},
	DatasetActuals: {
		Required:             []string{"department", "category", "amount"},
		Numeric:              []string{"amount", "fiscal_year", "fiscal_period"},
		DateColumn:           "date",
		PeriodColumn:         "period",
		RejectNegativeAmount: true,
		PlaceholderChecked:   []string{"department"},
	},
	DatasetTransactions: {
		Required:           []string{"date", "department", "vendor", "amount"},
		Numeric:            []string{"amount"},
		DateColumn:         "date",
		RequireDate:        true,
		PlaceholderChecked: []string{"department", "vendor"},
	},
	DatasetRevenues: {
		Required:           []string{"source", "category", "amount"},
		Numeric:            []string{"amount", "fiscal_year", "fiscal_period"},
		DateColumn:         "date",
		PeriodColumn:       "period",
		PlaceholderChecked: []string{"source"},
	},
}

// AllDatasetTypes lists the enumeration in a stable order.
var AllDatasetTypes = []DatasetType{
	DatasetBudgets, DatasetActuals, DatasetTransactions, DatasetRevenues,
}

// ValidateSchemas sanity-checks the schema table. It runs once at startup so
// a bad deployment fails fast instead of corrupting an ingestion run.
func ValidateSchemas() error {
	for _, dt := range AllDatasetTypes {
		schema, ok := Schemas[dt]
		if !ok {
			return fmt.Errorf("dataset %s has no column schema", dt)
		}
		if len(schema.Required) == 0 {
			return fmt.Errorf("dataset %s has an empty required-column set", dt)
		}
		seen := make(map[string]bool, len(schema.Required))
		for _, col := range schema.Required {
			if seen[col] {
				return fmt.Errorf("dataset %s declares required column %q twice", dt, col)
			}
			seen[col] = true
		}
		hasAmount := false
		for _, col := range schema.Required {
			if col == AmountColumn {
				hasAmount = true
			}
		}
		if !hasAmount {
			return fmt.Errorf("dataset %s schema is missing the %s column", dt, AmountColumn)
		}
	}
	return nil
}

// IsNumericColumn reports whether the schema declares col numeric.
func (s ColumnSchema) IsNumericColumn(col string) bool {
	for _, c := range s.Numeric {
		if c == col {
			return true
		}
	}
	return false
}
