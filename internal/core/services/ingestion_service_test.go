package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/opengovtools/fiscal_transparency_app/internal/apperrors"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	portssvc "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/services"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/services"
	"github.com/opengovtools/fiscal_transparency_app/internal/dto"
	"github.com/opengovtools/fiscal_transparency_app/internal/utils/fiscal"
)

// --- Mock DatasetRepository ---
type MockDatasetRepository struct {
	mock.Mock
}

func (m *MockDatasetRepository) DistinctFiscalYears(ctx context.Context, datasetType domain.DatasetType) ([]int, error) {
	args := m.Called(ctx, datasetType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockDatasetRepository) InsertChunk(ctx context.Context, datasetType domain.DatasetType, records []domain.NormalizedRecord, actor string, at time.Time) error {
	args := m.Called(ctx, datasetType, records, actor, at)
	return args.Error(0)
}

func (m *MockDatasetRepository) DeleteFiscalYear(ctx context.Context, datasetType domain.DatasetType, fiscalYear int) (int64, error) {
	args := m.Called(ctx, datasetType, fiscalYear)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDatasetRepository) DeleteAll(ctx context.Context, datasetType domain.DatasetType) (int64, error) {
	args := m.Called(ctx, datasetType)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock RollupSvc ---
type MockRollupSvc struct {
	mock.Mock
}

func (m *MockRollupSvc) Recompute(ctx context.Context, datasetType domain.DatasetType, fiscalYears []int, tableReplaced bool) error {
	args := m.Called(ctx, datasetType, fiscalYears, tableReplaced)
	return args.Error(0)
}

func (m *MockRollupSvc) PurgeYears(ctx context.Context, datasetType domain.DatasetType, fiscalYears []int) error {
	args := m.Called(ctx, datasetType, fiscalYears)
	return args.Error(0)
}

// --- Mock AuditSvc ---
type MockAuditSvc struct {
	mock.Mock
}

func (m *MockAuditSvc) Record(ctx context.Context, entry domain.AuditEntry) {
	m.Called(ctx, entry)
}

func (m *MockAuditSvc) ListEntries(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditEntry), args.Error(1)
}

// --- Mock RunRepository ---
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) SaveRun(ctx context.Context, run domain.UploadRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) FinishRun(ctx context.Context, runID string, status domain.RunStatus, insertedRows int, errMsg string) error {
	args := m.Called(ctx, runID, status, insertedRows, errMsg)
	return args.Error(0)
}

// --- Mock SettingsRepository ---
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) FiscalConfig(ctx context.Context, fallback fiscal.Config) (fiscal.Config, error) {
	args := m.Called(ctx, fallback)
	return args.Get(0).(fiscal.Config), args.Error(1)
}

// --- Test Suite ---
type IngestionServiceTestSuite struct {
	suite.Suite
	mockDatasetRepo  *MockDatasetRepository
	mockRollupSvc    *MockRollupSvc
	mockAuditSvc     *MockAuditSvc
	mockRunRepo      *MockRunRepository
	mockSettingsRepo *MockSettingsRepository
	service          portssvc.IngestionSvcFacade
}

func (suite *IngestionServiceTestSuite) SetupTest() {
	suite.mockDatasetRepo = new(MockDatasetRepository)
	suite.mockRollupSvc = new(MockRollupSvc)
	suite.mockAuditSvc = new(MockAuditSvc)
	suite.mockRunRepo = new(MockRunRepository)
	suite.mockSettingsRepo = new(MockSettingsRepository)
	suite.service = suite.newService(services.IngestionConfig{})
}

func (suite *IngestionServiceTestSuite) newService(cfg services.IngestionConfig) portssvc.IngestionSvcFacade {
	return services.NewIngestionService(
		cfg,
		suite.mockDatasetRepo,
		suite.mockRollupSvc,
		suite.mockAuditSvc,
		suite.mockRunRepo,
		suite.mockSettingsRepo,
	)
}

func (suite *IngestionServiceTestSuite) expectDefaultFiscalConfig() {
	suite.mockSettingsRepo.On("FiscalConfig", mock.Anything, mock.Anything).
		Return(fiscal.DefaultConfig(), nil).Maybe()
}

const budgetsCSV = "fiscal_year,department,category,amount\n" +
	"2024,Parks,Salaries,100\n" +
	"2024,Fire,Equipment,\"1,250.75\"\n"

func budgetsRequest(mode string) dto.UploadRequest {
	return dto.UploadRequest{
		Mode:        mode,
		CSV:         budgetsCSV,
		Filename:    "budgets.csv",
		DatasetType: domain.DatasetBudgets,
	}
}

func (suite *IngestionServiceTestSuite) TestIngest_AppendSuccess() {
	ctx := context.Background()
	suite.expectDefaultFiscalConfig()

	suite.mockRunRepo.On("SaveRun", mock.Anything, mock.MatchedBy(func(run domain.UploadRun) bool {
		return run.Status == domain.RunProcessing && run.AttemptedRows == 2 && run.Mode == domain.ModeAppend
	})).Return(nil).Once()
	suite.mockDatasetRepo.On("InsertChunk", mock.Anything, domain.DatasetBudgets, mock.MatchedBy(func(records []domain.NormalizedRecord) bool {
		return len(records) == 2
	}), "admin-1", mock.Anything).Return(nil).Once()
	suite.mockRollupSvc.On("Recompute", mock.Anything, domain.DatasetBudgets, []int{2024}, false).Return(nil).Once()
	suite.mockRunRepo.On("FinishRun", mock.Anything, mock.Anything, domain.RunSuccess, 2, "").Return(nil).Once()
	suite.mockAuditSvc.On("Record", mock.Anything, mock.MatchedBy(func(entry domain.AuditEntry) bool {
		return entry.Mode == domain.ModeAppend && entry.RowCount == 2 &&
			entry.FiscalYear != nil && *entry.FiscalYear == 2024 && entry.Filename == "budgets.csv"
	})).Once()

	result, err := suite.service.Ingest(ctx, budgetsRequest("append"), "admin-1")

	suite.Require().NoError(err)
	suite.Require().NotNil(result)
	suite.Equal(2, result.InsertedCount)
	suite.Equal(2, result.AttemptedCount)
	suite.Nil(result.FailedAtChunkIndex)
	suite.Equal([]int{2024}, result.AffectedFiscalYears)

	suite.mockDatasetRepo.AssertNotCalled(suite.T(), "DeleteFiscalYear", mock.Anything, mock.Anything, mock.Anything)
	suite.mockDatasetRepo.AssertNotCalled(suite.T(), "DeleteAll", mock.Anything, mock.Anything)
	suite.mockRunRepo.AssertExpectations(suite.T())
	suite.mockAuditSvc.AssertExpectations(suite.T())
}

func (suite *IngestionServiceTestSuite) TestIngest_ReplaceYearRequiresTarget() {
	req := budgetsRequest("replace_year")

	_, err := suite.service.Ingest(context.Background(), req, "admin-1")

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockRunRepo.AssertNotCalled(suite.T(), "SaveRun", mock.Anything, mock.Anything)
}

func (suite *IngestionServiceTestSuite) TestIngest_ReplaceTableRequiresConfirmation() {
	req := budgetsRequest("replace_table")

	_, err := suite.service.Ingest(context.Background(), req, "admin-1")

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockDatasetRepo.AssertNotCalled(suite.T(), "DeleteAll", mock.Anything, mock.Anything)
}

func (suite *IngestionServiceTestSuite) TestIngest_ReplaceYearMismatchWritesNothing() {
	suite.expectDefaultFiscalConfig()
	target := 2025
	req := budgetsRequest("replace_year")
	req.ReplaceYear = &target

	_, err := suite.service.Ingest(context.Background(), req, "admin-1")

	suite.Require().Error(err)
	var validationErr *services.ValidationError
	suite.Require().ErrorAs(err, &validationErr)
	suite.NotEmpty(validationErr.Issues)

	suite.mockDatasetRepo.AssertNotCalled(suite.T(), "DeleteFiscalYear", mock.Anything, mock.Anything, mock.Anything)
	suite.mockDatasetRepo.AssertNotCalled(suite.T(), "InsertChunk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	suite.mockRunRepo.AssertNotCalled(suite.T(), "SaveRun", mock.Anything, mock.Anything)
	suite.mockAuditSvc.AssertNotCalled(suite.T(), "Record", mock.Anything, mock.Anything)
}

func (suite *IngestionServiceTestSuite) TestIngest_ReplaceYearClearsTargetFirst() {
	suite.expectDefaultFiscalConfig()
	target := 2024
	req := budgetsRequest("replace_year")
	req.ReplaceYear = &target

	suite.mockRunRepo.On("SaveRun", mock.Anything, mock.Anything).Return(nil).Once()
	suite.mockDatasetRepo.On("DeleteFiscalYear", mock.Anything, domain.DatasetBudgets, 2024).Return(int64(40), nil).Once()
	suite.mockRollupSvc.On("PurgeYears", mock.Anything, domain.DatasetBudgets, []int{2024}).Return(nil).Once()
	suite.mockDatasetRepo.On("InsertChunk", mock.Anything, domain.DatasetBudgets, mock.Anything, "admin-1", mock.Anything).Return(nil).Once()
	suite.mockRollupSvc.On("Recompute", mock.Anything, domain.DatasetBudgets, []int{2024}, false).Return(nil).Once()
	suite.mockRunRepo.On("FinishRun", mock.Anything, mock.Anything, domain.RunSuccess, 2, "").Return(nil).Once()
	suite.mockAuditSvc.On("Record", mock.Anything, mock.MatchedBy(func(entry domain.AuditEntry) bool {
		return entry.Mode == domain.ModeReplaceYear && entry.FiscalYear != nil && *entry.FiscalYear == 2024
	})).Once()

	result, err := suite.service.Ingest(context.Background(), req, "admin-1")

	suite.Require().NoError(err)
	suite.Equal(2, result.InsertedCount)
	suite.mockDatasetRepo.AssertExpectations(suite.T())
	suite.mockRollupSvc.AssertExpectations(suite.T())
}

func (suite *IngestionServiceTestSuite) TestIngest_ReplaceTablePurgesDisappearingYears() {
	suite.expectDefaultFiscalConfig()
	req := budgetsRequest("replace_table")
	req.ConfirmReplaceTable = true

	suite.mockRunRepo.On("SaveRun", mock.Anything, mock.Anything).Return(nil).Once()
	suite.mockDatasetRepo.On("DistinctFiscalYears", mock.Anything, domain.DatasetBudgets).Return([]int{2022, 2024}, nil).Once()
	suite.mockDatasetRepo.On("DeleteAll", mock.Anything, domain.DatasetBudgets).Return(int64(120), nil).Once()
	suite.mockRollupSvc.On("PurgeYears", mock.Anything, domain.DatasetBudgets, []int{2022}).Return(nil).Once()
	suite.mockDatasetRepo.On("InsertChunk", mock.Anything, domain.DatasetBudgets, mock.Anything, "admin-1", mock.Anything).Return(nil).Once()
	suite.mockRollupSvc.On("Recompute", mock.Anything, domain.DatasetBudgets, []int{2024}, true).Return(nil).Once()
	suite.mockRunRepo.On("FinishRun", mock.Anything, mock.Anything, domain.RunSuccess, 2, "").Return(nil).Once()
	suite.mockAuditSvc.On("Record", mock.Anything, mock.Anything).Once()

	result, err := suite.service.Ingest(context.Background(), req, "admin-1")

	suite.Require().NoError(err)
	suite.Equal(2, result.InsertedCount)
	suite.mockDatasetRepo.AssertExpectations(suite.T())
	suite.mockRollupSvc.AssertExpectations(suite.T())
}

func (suite *IngestionServiceTestSuite) TestIngest_ChunkFailureReportsExactProgress() {
	suite.expectDefaultFiscalConfig()
	suite.service = suite.newService(services.IngestionConfig{ChunkSize: 5000})

	records := make([]map[string]string, 12001)
	for i := range records {
		records[i] = map[string]string{
			"fiscal_year": "2024",
			"department":  "Parks",
			"category":    fmt.Sprintf("Line %d", i),
			"amount":      "1",
		}
	}
	req := dto.UploadRequest{
		Mode:        "append",
		Records:     records,
		DatasetType: domain.DatasetBudgets,
	}

	suite.mockRunRepo.On("SaveRun", mock.Anything, mock.Anything).Return(nil).Once()
	suite.mockDatasetRepo.On("InsertChunk", mock.Anything, domain.DatasetBudgets, mock.Anything, "admin-1", mock.Anything).Return(nil).Twice()
	suite.mockDatasetRepo.On("InsertChunk", mock.Anything, domain.DatasetBudgets, mock.Anything, "admin-1", mock.Anything).Return(assert.AnError).Once()
	suite.mockRunRepo.On("FinishRun", mock.Anything, mock.Anything, domain.RunFailure, 10000, mock.Anything).Return(nil).Once()
	suite.mockAuditSvc.On("Record", mock.Anything, mock.MatchedBy(func(entry domain.AuditEntry) bool {
		return entry.RowCount == 10000
	})).Once()

	_, err := suite.service.Ingest(context.Background(), req, "admin-1")

	suite.Require().Error(err)
	var writeErr *services.WriteError
	suite.Require().ErrorAs(err, &writeErr)
	suite.Equal(10000, writeErr.Result.InsertedCount)
	suite.Equal(12001, writeErr.Result.AttemptedCount)
	suite.Require().NotNil(writeErr.Result.FailedAtChunkIndex)
	suite.Equal(10000, *writeErr.Result.FailedAtChunkIndex)

	// committed chunks stay committed, recompute never runs
	suite.mockRollupSvc.AssertNotCalled(suite.T(), "Recompute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	suite.mockRunRepo.AssertExpectations(suite.T())
	suite.mockAuditSvc.AssertExpectations(suite.T())
}

func (suite *IngestionServiceTestSuite) TestIngest_ValidationFailureLeavesNoTrace() {
	suite.expectDefaultFiscalConfig()
	req := dto.UploadRequest{
		Mode: "append",
		CSV: "fiscal_year,department,category,amount\n" +
			"2024,N/A,Salaries,-100\n",
		DatasetType: domain.DatasetBudgets,
	}

	_, err := suite.service.Ingest(context.Background(), req, "admin-1")

	suite.Require().Error(err)
	var validationErr *services.ValidationError
	suite.Require().ErrorAs(err, &validationErr)
	suite.Len(validationErr.Issues, 2)

	suite.mockRunRepo.AssertNotCalled(suite.T(), "SaveRun", mock.Anything, mock.Anything)
	suite.mockDatasetRepo.AssertNotCalled(suite.T(), "InsertChunk", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	suite.mockAuditSvc.AssertNotCalled(suite.T(), "Record", mock.Anything, mock.Anything)
}

func (suite *IngestionServiceTestSuite) TestIngest_MissingColumnIsSchemaError() {
	req := dto.UploadRequest{
		Mode:        "append",
		CSV:         "department,category\nParks,Salaries\n",
		DatasetType: domain.DatasetBudgets,
	}

	_, err := suite.service.Ingest(context.Background(), req, "admin-1")

	suite.Require().Error(err)
	var schemaErr *services.SchemaError
	suite.Require().ErrorAs(err, &schemaErr)
	suite.NotEmpty(schemaErr.Issues)
	suite.mockSettingsRepo.AssertNotCalled(suite.T(), "FiscalConfig", mock.Anything, mock.Anything)
}

func (suite *IngestionServiceTestSuite) TestIngest_MaxRecordsEnforced() {
	suite.service = suite.newService(services.IngestionConfig{MaxRecords: 1})

	_, err := suite.service.Ingest(context.Background(), budgetsRequest("append"), "admin-1")

	suite.Require().Error(err)
	var validationErr *services.ValidationError
	suite.Require().ErrorAs(err, &validationErr)
	suite.mockSettingsRepo.AssertNotCalled(suite.T(), "FiscalConfig", mock.Anything, mock.Anything)
}

func (suite *IngestionServiceTestSuite) TestIngest_CSVAndRecordsAreMutuallyExclusive() {
	req := budgetsRequest("append")
	req.Records = []map[string]string{{"fiscal_year": "2024"}}

	_, err := suite.service.Ingest(context.Background(), req, "admin-1")

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *IngestionServiceTestSuite) TestIngest_RecomputeFailureStillAudited() {
	suite.expectDefaultFiscalConfig()
	expectedErr := &services.RecomputeError{DatasetType: domain.DatasetBudgets, FiscalYear: 2024, Err: assert.AnError}

	suite.mockRunRepo.On("SaveRun", mock.Anything, mock.Anything).Return(nil).Once()
	suite.mockDatasetRepo.On("InsertChunk", mock.Anything, domain.DatasetBudgets, mock.Anything, "admin-1", mock.Anything).Return(nil).Once()
	suite.mockRollupSvc.On("Recompute", mock.Anything, domain.DatasetBudgets, []int{2024}, false).Return(expectedErr).Once()
	suite.mockRunRepo.On("FinishRun", mock.Anything, mock.Anything, domain.RunFailure, 2, mock.Anything).Return(nil).Once()
	suite.mockAuditSvc.On("Record", mock.Anything, mock.MatchedBy(func(entry domain.AuditEntry) bool {
		return entry.RowCount == 2
	})).Once()

	_, err := suite.service.Ingest(context.Background(), budgetsRequest("append"), "admin-1")

	suite.Require().Error(err)
	var recomputeErr *services.RecomputeError
	suite.ErrorAs(err, &recomputeErr)
	suite.mockAuditSvc.AssertExpectations(suite.T())
	suite.mockRunRepo.AssertExpectations(suite.T())
}

func (suite *IngestionServiceTestSuite) TestIngest_ConcurrentRunsOnSameDatasetConflict() {
	suite.expectDefaultFiscalConfig()

	entered := make(chan struct{})
	release := make(chan struct{})

	suite.mockRunRepo.On("SaveRun", mock.Anything, mock.Anything).Return(nil).Once()
	suite.mockDatasetRepo.On("InsertChunk", mock.Anything, domain.DatasetBudgets, mock.Anything, "admin-1", mock.Anything).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
		}).Return(nil).Once()
	suite.mockRollupSvc.On("Recompute", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	suite.mockRunRepo.On("FinishRun", mock.Anything, mock.Anything, domain.RunSuccess, 2, "").Return(nil).Once()
	suite.mockAuditSvc.On("Record", mock.Anything, mock.Anything).Once()

	done := make(chan error, 1)
	go func() {
		_, err := suite.service.Ingest(context.Background(), budgetsRequest("append"), "admin-1")
		done <- err
	}()

	<-entered
	_, err := suite.service.Ingest(context.Background(), budgetsRequest("append"), "admin-2")
	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrConflict)

	close(release)
	suite.NoError(<-done)
}

func (suite *IngestionServiceTestSuite) TestPurgeFiscalYear_RecordsNegativeAudit() {
	ctx := context.Background()

	suite.mockDatasetRepo.On("DeleteFiscalYear", ctx, domain.DatasetBudgets, 2023).Return(int64(7), nil).Once()
	suite.mockRollupSvc.On("PurgeYears", ctx, domain.DatasetBudgets, []int{2023}).Return(nil).Once()
	suite.mockRollupSvc.On("Recompute", ctx, domain.DatasetBudgets, []int{2023}, false).Return(nil).Once()
	suite.mockAuditSvc.On("Record", ctx, mock.MatchedBy(func(entry domain.AuditEntry) bool {
		return entry.RowCount == -7 && entry.FiscalYear != nil && *entry.FiscalYear == 2023
	})).Once()

	deleted, err := suite.service.PurgeFiscalYear(ctx, domain.DatasetBudgets, 2023, "admin-1")

	suite.Require().NoError(err)
	suite.Equal(int64(7), deleted)
	suite.mockAuditSvc.AssertExpectations(suite.T())
}

func (suite *IngestionServiceTestSuite) TestPurgeFiscalYear_TransactionsSkipCombinedRecompute() {
	ctx := context.Background()

	suite.mockDatasetRepo.On("DeleteFiscalYear", ctx, domain.DatasetTransactions, 2023).Return(int64(3), nil).Once()
	suite.mockRollupSvc.On("PurgeYears", ctx, domain.DatasetTransactions, []int{2023}).Return(nil).Once()
	suite.mockAuditSvc.On("Record", ctx, mock.Anything).Once()

	deleted, err := suite.service.PurgeFiscalYear(ctx, domain.DatasetTransactions, 2023, "admin-1")

	suite.Require().NoError(err)
	suite.Equal(int64(3), deleted)
	suite.mockRollupSvc.AssertNotCalled(suite.T(), "Recompute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *IngestionServiceTestSuite) TestDatasetYears_Delegates() {
	ctx := context.Background()

	suite.mockDatasetRepo.On("DistinctFiscalYears", ctx, domain.DatasetRevenues).Return([]int{2024, 2023}, nil).Once()

	years, err := suite.service.DatasetYears(ctx, domain.DatasetRevenues)

	suite.Require().NoError(err)
	suite.Equal([]int{2024, 2023}, years)
}

func TestIngestionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(IngestionServiceTestSuite))
}
