package services

import (
	"fmt"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
)

// SchemaError is a fatal pre-write failure caused by header-level defects
// (duplicate or missing required columns). Nothing has been touched yet.
type SchemaError struct {
	Issues []domain.ValidationIssue
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("upload header is invalid (%d issues)", len(e.Issues))
}

// ValidationError is a fatal pre-write failure caused by one or more
// row-level defects. Issues are aggregated so the caller can fix the whole
// file in one pass.
type ValidationError struct {
	Issues []domain.ValidationIssue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("upload failed validation (%d issues)", len(e.Issues))
}

// WriteError is a fatal mid-write failure. Chunks committed before the
// failure stay committed; Result carries the exact partial-progress counts.
type WriteError struct {
	Result domain.UploadResult
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed after %d of %d rows: %v",
		e.Result.InsertedCount, e.Result.AttemptedCount, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// RecomputeError is a fatal post-write failure: the raw rows persisted but a
// dependent rollup could not be rebuilt, so public-facing totals are stale.
type RecomputeError struct {
	DatasetType domain.DatasetType
	FiscalYear  int
	Err         error
}

func (e *RecomputeError) Error() string {
	return fmt.Sprintf("rows were written but the %s rollup for fiscal year %d failed to recompute: %v",
		e.DatasetType, e.FiscalYear, e.Err)
}

func (e *RecomputeError) Unwrap() error { return e.Err }
