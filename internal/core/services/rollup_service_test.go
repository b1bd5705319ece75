package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/services"
	portssvc "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/services"
)

// --- Mock RollupRepository ---
type MockRollupRepository struct {
	mock.Mock
	rebuildOrder []int
}

func (m *MockRollupRepository) RebuildTransactionDepartment(ctx context.Context, fiscalYear int) error {
	m.rebuildOrder = append(m.rebuildOrder, fiscalYear)
	args := m.Called(ctx, fiscalYear)
	return args.Error(0)
}

func (m *MockRollupRepository) RebuildTransactionVendor(ctx context.Context, fiscalYear int) error {
	args := m.Called(ctx, fiscalYear)
	return args.Error(0)
}

func (m *MockRollupRepository) RebuildBudgetActualDepartment(ctx context.Context, fiscalYear int) error {
	m.rebuildOrder = append(m.rebuildOrder, fiscalYear)
	args := m.Called(ctx, fiscalYear)
	return args.Error(0)
}

func (m *MockRollupRepository) PurgeYears(ctx context.Context, datasetType domain.DatasetType, fiscalYears []int) error {
	args := m.Called(ctx, datasetType, fiscalYears)
	return args.Error(0)
}

func (m *MockRollupRepository) RefreshSummaryViews(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Mock DatasetReader ---
type MockDatasetReader struct {
	mock.Mock
}

func (m *MockDatasetReader) DistinctFiscalYears(ctx context.Context, datasetType domain.DatasetType) ([]int, error) {
	args := m.Called(ctx, datasetType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

// --- Test Suite ---
type RollupServiceTestSuite struct {
	suite.Suite
	mockRollupRepo  *MockRollupRepository
	mockDatasetRepo *MockDatasetReader
	service         portssvc.RollupSvcFacade
}

func (suite *RollupServiceTestSuite) SetupTest() {
	suite.mockRollupRepo = new(MockRollupRepository)
	suite.mockDatasetRepo = new(MockDatasetReader)
	suite.service = services.NewRollupService(suite.mockRollupRepo, suite.mockDatasetRepo)
}

func (suite *RollupServiceTestSuite) TestRecompute_TransactionsNewestYearFirst() {
	ctx := context.Background()

	suite.mockRollupRepo.On("RebuildTransactionDepartment", ctx, mock.AnythingOfType("int")).Return(nil).Times(3)
	suite.mockRollupRepo.On("RebuildTransactionVendor", ctx, mock.AnythingOfType("int")).Return(nil).Times(3)
	suite.mockRollupRepo.On("RefreshSummaryViews", ctx).Return(nil).Once()

	err := suite.service.Recompute(ctx, domain.DatasetTransactions, []int{2022, 2024, 2023}, false)

	suite.Require().NoError(err)
	suite.Equal([]int{2024, 2023, 2022}, suite.mockRollupRepo.rebuildOrder)
	suite.mockRollupRepo.AssertExpectations(suite.T())
}

func (suite *RollupServiceTestSuite) TestRecompute_RebuildFailureIsFatal() {
	ctx := context.Background()
	expectedErr := assert.AnError

	suite.mockRollupRepo.On("RebuildTransactionDepartment", ctx, 2024).Return(expectedErr).Once()

	err := suite.service.Recompute(ctx, domain.DatasetTransactions, []int{2023, 2024}, false)

	suite.Require().Error(err)
	var recomputeErr *services.RecomputeError
	suite.Require().ErrorAs(err, &recomputeErr)
	suite.Equal(2024, recomputeErr.FiscalYear)
	suite.ErrorIs(err, expectedErr)
	// the older year is never attempted once the newest fails
	suite.mockRollupRepo.AssertNotCalled(suite.T(), "RebuildTransactionDepartment", ctx, 2023)
	suite.mockRollupRepo.AssertNotCalled(suite.T(), "RefreshSummaryViews", ctx)
}

func (suite *RollupServiceTestSuite) TestRecompute_BudgetsTableReplacedUsesYearUnion() {
	ctx := context.Background()

	suite.mockDatasetRepo.On("DistinctFiscalYears", ctx, domain.DatasetBudgets).Return([]int{2024, 2022}, nil).Once()
	suite.mockDatasetRepo.On("DistinctFiscalYears", ctx, domain.DatasetActuals).Return([]int{2023, 2024}, nil).Once()
	suite.mockRollupRepo.On("RebuildBudgetActualDepartment", ctx, mock.AnythingOfType("int")).Return(nil).Times(3)
	suite.mockRollupRepo.On("RefreshSummaryViews", ctx).Return(nil).Once()

	err := suite.service.Recompute(ctx, domain.DatasetBudgets, []int{2024}, true)

	suite.Require().NoError(err)
	suite.Equal([]int{2024, 2023, 2022}, suite.mockRollupRepo.rebuildOrder)
	suite.mockRollupRepo.AssertExpectations(suite.T())
	suite.mockDatasetRepo.AssertExpectations(suite.T())
}

func (suite *RollupServiceTestSuite) TestRecompute_ActualsAppendOnlyRebuildsBatchYears() {
	ctx := context.Background()

	suite.mockRollupRepo.On("RebuildBudgetActualDepartment", ctx, 2024).Return(nil).Once()
	suite.mockRollupRepo.On("RefreshSummaryViews", ctx).Return(nil).Once()

	err := suite.service.Recompute(ctx, domain.DatasetActuals, []int{2024}, false)

	suite.Require().NoError(err)
	suite.mockDatasetRepo.AssertNotCalled(suite.T(), "DistinctFiscalYears", mock.Anything, mock.Anything)
	suite.mockRollupRepo.AssertExpectations(suite.T())
}

func (suite *RollupServiceTestSuite) TestRecompute_RevenuesOnlyRefreshesViews() {
	ctx := context.Background()

	suite.mockRollupRepo.On("RefreshSummaryViews", ctx).Return(nil).Once()

	err := suite.service.Recompute(ctx, domain.DatasetRevenues, []int{2024}, false)

	suite.Require().NoError(err)
	suite.mockRollupRepo.AssertExpectations(suite.T())
}

func (suite *RollupServiceTestSuite) TestRecompute_ViewRefreshFailureIsNotFatal() {
	ctx := context.Background()

	suite.mockRollupRepo.On("RebuildTransactionDepartment", ctx, 2024).Return(nil).Once()
	suite.mockRollupRepo.On("RebuildTransactionVendor", ctx, 2024).Return(nil).Once()
	suite.mockRollupRepo.On("RefreshSummaryViews", ctx).Return(assert.AnError).Once()

	err := suite.service.Recompute(ctx, domain.DatasetTransactions, []int{2024}, false)

	suite.NoError(err)
	suite.mockRollupRepo.AssertExpectations(suite.T())
}

func (suite *RollupServiceTestSuite) TestPurgeYears_EmptyListIsNoOp() {
	ctx := context.Background()

	err := suite.service.PurgeYears(ctx, domain.DatasetTransactions, nil)

	suite.NoError(err)
	suite.mockRollupRepo.AssertNotCalled(suite.T(), "PurgeYears", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RollupServiceTestSuite) TestPurgeYears_Delegates() {
	ctx := context.Background()

	suite.mockRollupRepo.On("PurgeYears", ctx, domain.DatasetBudgets, []int{2021, 2022}).Return(nil).Once()

	err := suite.service.PurgeYears(ctx, domain.DatasetBudgets, []int{2021, 2022})

	suite.NoError(err)
	suite.mockRollupRepo.AssertExpectations(suite.T())
}

func TestRollupServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RollupServiceTestSuite))
}
