package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opengovtools/fiscal_transparency_app/internal/apperrors"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
	portssvc "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/services"
	"github.com/opengovtools/fiscal_transparency_app/internal/dto"
	"github.com/opengovtools/fiscal_transparency_app/internal/middleware"
	"github.com/opengovtools/fiscal_transparency_app/internal/utils/fiscal"
	"github.com/opengovtools/fiscal_transparency_app/internal/utils/tabular"
)

// runState names the orchestrator's position in the pipeline, used for log
// correlation.
type runState string

const (
	stateValidating     runState = "validating"
	stateReplacingYear  runState = "replacing_year"
	stateReplacingTable runState = "replacing_table"
	stateWriting        runState = "writing"
	stateRecomputing    runState = "recomputing"
	stateCompleted      runState = "completed"
	stateFailed         runState = "failed"
)

// chunkWriteTimeout bounds a single chunk insert. Chunks already submitted
// run on a detached context so a caller disconnect never strands a
// half-written batch without a record.
const chunkWriteTimeout = 2 * time.Minute

// IngestionConfig tunes the upload pipeline.
type IngestionConfig struct {
	// ChunkSize is the number of records persisted per batch.
	ChunkSize int
	// MaxRecords caps the total records accepted per run.
	MaxRecords int
	// RunTimeout is the wall-clock budget for one run.
	RunTimeout time.Duration
	// DefaultFiscal is used when the portal settings carry no fiscal start.
	DefaultFiscal fiscal.Config
}

func (c IngestionConfig) withDefaults() IngestionConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 5000
	}
	if c.MaxRecords <= 0 {
		c.MaxRecords = 250000
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
	if c.DefaultFiscal == (fiscal.Config{}) {
		c.DefaultFiscal = fiscal.DefaultConfig()
	}
	return c
}

// ingestionService is the upload orchestrator: it selects the replacement
// strategy, enforces its preconditions, drives the chunked write and hands
// off to rollup recomputation and the audit trail.
type ingestionService struct {
	cfg          IngestionConfig
	datasetRepo  portsrepo.DatasetRepositoryFacade
	rollupSvc    portssvc.RollupSvcFacade
	auditSvc     portssvc.AuditSvcFacade
	runRepo      portsrepo.RunRepository
	settingsRepo portsrepo.SettingsRepository
	locks        *runLocks
}

// NewIngestionService creates the upload orchestrator.
func NewIngestionService(
	cfg IngestionConfig,
	datasetRepo portsrepo.DatasetRepositoryFacade,
	rollupSvc portssvc.RollupSvcFacade,
	auditSvc portssvc.AuditSvcFacade,
	runRepo portsrepo.RunRepository,
	settingsRepo portsrepo.SettingsRepository,
) portssvc.IngestionSvcFacade {
	return &ingestionService{
		cfg:          cfg.withDefaults(),
		datasetRepo:  datasetRepo,
		rollupSvc:    rollupSvc,
		auditSvc:     auditSvc,
		runRepo:      runRepo,
		settingsRepo: settingsRepo,
		locks:        newRunLocks(),
	}
}

var _ portssvc.IngestionSvcFacade = (*ingestionService)(nil)

// Ingest runs the full pipeline for one upload request.
func (s *ingestionService) Ingest(ctx context.Context, req dto.UploadRequest, actor string) (*domain.UploadResult, error) {
	datasetType, err := domain.ParseDatasetType(string(req.DatasetType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	mode, err := domain.ParseUploadMode(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if mode == domain.ModeReplaceYear && req.ReplaceYear == nil {
		return nil, fmt.Errorf("%w: replace_year mode requires a replaceYear", apperrors.ErrValidation)
	}
	if mode == domain.ModeReplaceTable && !req.ConfirmReplaceTable {
		return nil, fmt.Errorf("%w: replace_table mode requires explicit confirmation", apperrors.ErrValidation)
	}

	if !s.locks.tryAcquire(datasetType) {
		return nil, fmt.Errorf("%w: an upload for %s is already running", apperrors.ErrConflict, datasetType)
	}
	defer s.locks.release(datasetType)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	logger := middleware.GetLoggerFromCtx(ctx).With(
		slog.String("dataset", string(datasetType)),
		slog.String("mode", string(mode)),
	)
	logger.Info("ingestion run started", slog.String("state", string(stateValidating)))

	normalized, years, err := s.validatePhase(ctx, datasetType, mode, req)
	if err != nil {
		return nil, err
	}

	run := domain.UploadRun{
		RunID:         uuid.NewString(),
		DatasetType:   datasetType,
		Mode:          mode,
		Status:        domain.RunProcessing,
		Filename:      req.Filename,
		Actor:         actor,
		AttemptedRows: len(normalized),
		StartedAt:     time.Now().UTC(),
	}
	// in-progress marker; a row stuck in processing flags an interrupted run
	if err := s.runRepo.SaveRun(ctx, run); err != nil {
		logger.Warn("could not persist upload run marker", slog.String("error", err.Error()))
	}

	if err := s.destructivePhase(ctx, logger, datasetType, mode, req, years); err != nil {
		s.finishRun(ctx, logger, run.RunID, domain.RunFailure, 0, err)
		return nil, err
	}

	logger.Info("writing records", slog.String("state", string(stateWriting)), slog.Int("rows", len(normalized)))
	result, writeErr := s.writeChunks(ctx, datasetType, normalized, actor)
	result.AffectedFiscalYears = years
	if writeErr != nil {
		s.finishRun(ctx, logger, run.RunID, domain.RunFailure, result.InsertedCount, writeErr)
		s.auditSvc.Record(ctx, s.auditEntry(datasetType, mode, result.InsertedCount, req, years, actor))
		return nil, &WriteError{Result: *result, Err: writeErr}
	}

	logger.Info("recomputing rollups", slog.String("state", string(stateRecomputing)), slog.Any("fiscal_years", years))
	if err := s.rollupSvc.Recompute(ctx, datasetType, years, mode == domain.ModeReplaceTable); err != nil {
		s.finishRun(ctx, logger, run.RunID, domain.RunFailure, result.InsertedCount, err)
		s.auditSvc.Record(ctx, s.auditEntry(datasetType, mode, result.InsertedCount, req, years, actor))
		return nil, err
	}

	s.finishRun(ctx, logger, run.RunID, domain.RunSuccess, result.InsertedCount, nil)
	s.auditSvc.Record(ctx, s.auditEntry(datasetType, mode, result.InsertedCount, req, years, actor))
	logger.Info("ingestion run completed",
		slog.String("state", string(stateCompleted)),
		slog.Int("inserted", result.InsertedCount))
	return result, nil
}

// validatePhase parses, validates and normalizes the batch and enforces the
// mode preconditions that must hold before anything destructive happens.
func (s *ingestionService) validatePhase(ctx context.Context, datasetType domain.DatasetType, mode domain.UploadMode, req dto.UploadRequest) ([]domain.NormalizedRecord, []int, error) {
	header, rows, err := tableFromRequest(req)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) > s.cfg.MaxRecords {
		return nil, nil, &ValidationError{Issues: []domain.ValidationIssue{
			domain.FileIssue("", fmt.Sprintf("upload has %d rows, the maximum per run is %d", len(rows), s.cfg.MaxRecords)),
		}}
	}

	records, _, issues := ValidateBatch(datasetType, header, rows)
	if records == nil && len(issues) > 0 {
		return nil, nil, &SchemaError{Issues: issues}
	}

	fiscalCfg, err := s.settingsRepo.FiscalConfig(ctx, s.cfg.DefaultFiscal)
	if err != nil {
		middleware.GetLoggerFromCtx(ctx).Warn("portal fiscal settings unavailable, using defaults",
			slog.String("error", err.Error()))
		fiscalCfg = s.cfg.DefaultFiscal
	}

	normalized, normIssues := NormalizeRecords(datasetType, records, fiscalCfg)
	issues = append(issues, normIssues...)

	years := domain.DistinctYears(normalized)
	if mode == domain.ModeReplaceYear {
		target := *req.ReplaceYear
		if len(years) != 1 || years[0] != target {
			issues = append(issues, domain.FileIssue(domain.FiscalYearColumn,
				fmt.Sprintf("replace_year %d requires every record to resolve to that fiscal year, batch has %v", target, years)))
		}
	}
	if len(issues) > 0 {
		sortIssues(issues)
		return nil, nil, &ValidationError{Issues: issues}
	}
	if len(normalized) == 0 {
		return nil, nil, &ValidationError{Issues: []domain.ValidationIssue{
			domain.FileIssue("", "upload contains no data rows"),
		}}
	}
	return normalized, years, nil
}

// destructivePhase clears existing rows per the selected replacement
// strategy. Deletion completes before any insert; the rollup purge for
// disappearing years is best-effort because aborting mid-upload would leave
// the system worse off than a stale rollup row.
func (s *ingestionService) destructivePhase(ctx context.Context, logger *slog.Logger, datasetType domain.DatasetType, mode domain.UploadMode, req dto.UploadRequest, batchYears []int) error {
	switch mode {
	case domain.ModeReplaceYear:
		target := *req.ReplaceYear
		logger.Info("clearing fiscal year", slog.String("state", string(stateReplacingYear)), slog.Int("fiscal_year", target))
		if _, err := s.datasetRepo.DeleteFiscalYear(ctx, datasetType, target); err != nil {
			return apperrors.NewAppError(500, fmt.Sprintf("failed to clear fiscal year %d before insert", target), err)
		}
		if err := s.rollupSvc.PurgeYears(ctx, datasetType, []int{target}); err != nil {
			logger.Warn("rollup purge failed, continuing with stale rollup rows", slog.String("error", err.Error()))
		}

	case domain.ModeReplaceTable:
		logger.Info("clearing dataset table", slog.String("state", string(stateReplacingTable)))
		yearsBefore, err := s.datasetRepo.DistinctFiscalYears(ctx, datasetType)
		if err != nil {
			logger.Warn("could not list existing fiscal years, disappearing rollups will not be purged",
				slog.String("error", err.Error()))
		}
		if _, err := s.datasetRepo.DeleteAll(ctx, datasetType); err != nil {
			return apperrors.NewAppError(500, "failed to clear dataset table before insert", err)
		}
		if gone := yearsNotIn(yearsBefore, batchYears); len(gone) > 0 {
			if err := s.rollupSvc.PurgeYears(ctx, datasetType, gone); err != nil {
				logger.Warn("rollup purge failed, continuing with stale rollup rows", slog.String("error", err.Error()))
			}
		}
	}
	return nil
}

// writeChunks persists the batch in fixed-size chunks. On a chunk failure it
// stops immediately and reports exact partial progress; committed chunks are
// never rolled back. The in-flight chunk runs on a detached context so a
// caller disconnect lets it finish instead of leaving it half-applied.
func (s *ingestionService) writeChunks(ctx context.Context, datasetType domain.DatasetType, records []domain.NormalizedRecord, actor string) (*domain.UploadResult, error) {
	result := &domain.UploadResult{AttemptedCount: len(records)}
	now := time.Now().UTC()

	for start := 0; start < len(records); start += s.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			idx := start
			result.FailedAtChunkIndex = &idx
			return result, fmt.Errorf("run aborted before chunk at offset %d: %w", start, err)
		}
		end := min(start+s.cfg.ChunkSize, len(records))

		chunkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), chunkWriteTimeout)
		err := s.datasetRepo.InsertChunk(chunkCtx, datasetType, records[start:end], actor, now)
		cancel()
		if err != nil {
			idx := start
			result.FailedAtChunkIndex = &idx
			return result, err
		}
		result.InsertedCount += end - start
	}
	return result, nil
}

// PurgeFiscalYear deletes one fiscal year from a dataset outside of an
// upload, recording a negative-count audit entry.
func (s *ingestionService) PurgeFiscalYear(ctx context.Context, datasetType domain.DatasetType, fiscalYear int, actor string) (int64, error) {
	if _, err := domain.ParseDatasetType(string(datasetType)); err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if !s.locks.tryAcquire(datasetType) {
		return 0, fmt.Errorf("%w: an upload for %s is already running", apperrors.ErrConflict, datasetType)
	}
	defer s.locks.release(datasetType)

	logger := middleware.GetLoggerFromCtx(ctx).With(
		slog.String("dataset", string(datasetType)), slog.Int("fiscal_year", fiscalYear))

	deleted, err := s.datasetRepo.DeleteFiscalYear(ctx, datasetType, fiscalYear)
	if err != nil {
		return 0, apperrors.NewAppError(500, fmt.Sprintf("failed to delete fiscal year %d", fiscalYear), err)
	}
	if err := s.rollupSvc.PurgeYears(ctx, datasetType, []int{fiscalYear}); err != nil {
		logger.Warn("rollup purge failed after delete", slog.String("error", err.Error()))
	}
	// the combined rollup joins budgets and actuals, so the other table's
	// rows may still need an aggregate for this year
	if datasetType == domain.DatasetBudgets || datasetType == domain.DatasetActuals {
		if err := s.rollupSvc.Recompute(ctx, datasetType, []int{fiscalYear}, false); err != nil {
			logger.Warn("rollup recompute failed after delete", slog.String("error", err.Error()))
		}
	}

	year := fiscalYear
	s.auditSvc.Record(ctx, domain.AuditEntry{
		DatasetType: datasetType,
		Mode:        domain.ModeReplaceYear,
		RowCount:    -int(deleted),
		FiscalYear:  &year,
		Actor:       actor,
	})
	logger.Info("fiscal year purged", slog.Int64("deleted", deleted))
	return deleted, nil
}

// DatasetYears lists the fiscal years currently present in a dataset.
func (s *ingestionService) DatasetYears(ctx context.Context, datasetType domain.DatasetType) ([]int, error) {
	if _, err := domain.ParseDatasetType(string(datasetType)); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return s.datasetRepo.DistinctFiscalYears(ctx, datasetType)
}

// auditEntry builds the audit record for a completed attempt. The fiscal
// year is the explicit target for replace_year, the single distinct batch
// year when unambiguous, or nil otherwise.
func (s *ingestionService) auditEntry(datasetType domain.DatasetType, mode domain.UploadMode, inserted int, req dto.UploadRequest, years []int, actor string) domain.AuditEntry {
	var fiscalYear *int
	switch {
	case mode == domain.ModeReplaceYear && req.ReplaceYear != nil:
		y := *req.ReplaceYear
		fiscalYear = &y
	case len(years) == 1:
		y := years[0]
		fiscalYear = &y
	}
	return domain.AuditEntry{
		DatasetType: datasetType,
		Mode:        mode,
		RowCount:    inserted,
		FiscalYear:  fiscalYear,
		Filename:    req.Filename,
		Actor:       actor,
	}
}

// finishRun finalizes the in-progress marker; best-effort.
func (s *ingestionService) finishRun(ctx context.Context, logger *slog.Logger, runID string, status domain.RunStatus, inserted int, runErr error) {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		logger.Error("ingestion run failed",
			slog.String("state", string(stateFailed)), slog.String("error", errMsg))
	}
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := s.runRepo.FinishRun(finishCtx, runID, status, inserted, errMsg); err != nil {
		logger.Warn("could not finalize upload run marker", slog.String("error", err.Error()))
	}
}

// tableFromRequest extracts header and data rows from whichever input shape
// the request carried.
func tableFromRequest(req dto.UploadRequest) ([]string, [][]string, error) {
	switch {
	case req.CSV != "" && req.Records != nil:
		return nil, nil, fmt.Errorf("%w: provide csv or records, not both", apperrors.ErrValidation)

	case req.CSV != "":
		table := tabular.Parse(req.CSV)
		if len(table) < 2 {
			return nil, nil, &ValidationError{Issues: []domain.ValidationIssue{
				domain.FileIssue("", "upload needs a header row and at least one data row"),
			}}
		}
		return table[0], table[1:], nil

	case len(req.Records) > 0:
		header := recordColumns(req.Records)
		rows := make([][]string, len(req.Records))
		for i, rec := range req.Records {
			row := make([]string, len(header))
			for j, col := range header {
				row[j] = rec[col]
			}
			rows[i] = row
		}
		return header, rows, nil

	default:
		return nil, nil, fmt.Errorf("%w: upload carries no csv text and no records", apperrors.ErrValidation)
	}
}

// recordColumns derives a stable header from pre-parsed records: all keys
// observed across the batch, sorted.
func recordColumns(records []map[string]string) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for col := range rec {
			seen[col] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for col := range seen {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// yearsNotIn returns the fiscal years in before that are absent from current.
func yearsNotIn(before, current []int) []int {
	kept := make(map[int]bool, len(current))
	for _, y := range current {
		kept[y] = true
	}
	var gone []int
	for _, y := range before {
		if !kept[y] {
			gone = append(gone, y)
		}
	}
	return gone
}
