package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opengovtools/fiscal_transparency_app/internal/apperrors"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	portssvc "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/services"
	"github.com/opengovtools/fiscal_transparency_app/internal/core/services"
	"github.com/opengovtools/fiscal_transparency_app/internal/dto"
	"github.com/opengovtools/fiscal_transparency_app/internal/middleware"
)

// ingestionHandler handles bulk dataset upload requests.
type ingestionHandler struct {
	ingestionService portssvc.IngestionSvcFacade
}

func newIngestionHandler(is portssvc.IngestionSvcFacade) *ingestionHandler {
	return &ingestionHandler{ingestionService: is}
}

// RegisterIngestionRoutes registers the dataset ingestion routes.
func RegisterIngestionRoutes(rg *gin.RouterGroup, ingestionService portssvc.IngestionSvcFacade) {
	h := newIngestionHandler(ingestionService)

	datasets := rg.Group("/datasets")
	{
		datasets.POST("/:datasetType/upload", h.upload)
		datasets.GET("/:datasetType/years", h.listYears)
		datasets.DELETE("/:datasetType/years/:year", h.purgeYear)
	}
}

// upload godoc
// @Summary Bulk-upload rows into a dataset
// @Description Validates, normalizes and writes administrator-supplied tabular data using the requested replacement strategy
// @Tags datasets
// @Accept json
// @Produce json
// @Param datasetType path string true "Dataset type" Enums(budgets, actuals, transactions, revenues)
// @Param upload body dto.UploadRequest true "Upload payload"
// @Success 200 {object} dto.UploadSuccessResponse
// @Failure 400 {object} dto.UploadFailureResponse "Schema or validation failure"
// @Failure 409 {object} dto.UploadFailureResponse "Conflicting run in progress"
// @Failure 500 {object} dto.UploadFailureResponse "Write or recompute failure"
// @Security BearerAuth
// @Router /datasets/{datasetType}/upload [post]
func (h *ingestionHandler) upload(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	datasetType, err := domain.ParseDatasetType(c.Param("datasetType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.UploadFailureResponse{Error: err.Error()})
		return
	}

	var req dto.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("failed to bind upload request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.UploadFailureResponse{Error: "Invalid request format: " + err.Error()})
		return
	}
	req.DatasetType = datasetType

	actor, ok := middleware.GetActorFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.UploadFailureResponse{Error: "Unauthorized"})
		return
	}

	result, err := h.ingestionService.Ingest(c.Request.Context(), req, actor)
	if err != nil {
		h.writeIngestError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToUploadSuccessResponse(result))
}

// writeIngestError maps pipeline errors onto the transport, preserving the
// full issue list and partial-progress accounting.
func (h *ingestionHandler) writeIngestError(c *gin.Context, err error) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var schemaErr *services.SchemaError
	var validationErr *services.ValidationError
	var writeErr *services.WriteError
	var recomputeErr *services.RecomputeError

	switch {
	case errors.As(err, &schemaErr):
		issues, omitted := dto.ToIssueResponses(schemaErr.Issues)
		c.JSON(http.StatusBadRequest, dto.UploadFailureResponse{
			Error: err.Error(), Issues: issues, OmittedIssueCount: omitted,
		})

	case errors.As(err, &validationErr):
		issues, omitted := dto.ToIssueResponses(validationErr.Issues)
		c.JSON(http.StatusBadRequest, dto.UploadFailureResponse{
			Error: err.Error(), Issues: issues, OmittedIssueCount: omitted,
		})

	case errors.As(err, &writeErr):
		logger.Error("upload write failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.UploadFailureResponse{
			Error: err.Error(),
			Details: &dto.UploadFailureDetails{
				AttemptedRows:            writeErr.Result.AttemptedCount,
				SuccessfullyInsertedRows: writeErr.Result.InsertedCount,
				FailedAtIndex:            writeErr.Result.FailedAtChunkIndex,
			},
		})

	case errors.As(err, &recomputeErr):
		logger.Error("rollup recompute failed after write", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.UploadFailureResponse{Error: err.Error()})

	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, dto.UploadFailureResponse{Error: err.Error()})

	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.UploadFailureResponse{Error: err.Error()})

	default:
		logger.Error("upload failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.UploadFailureResponse{Error: "Upload failed"})
	}
}

// listYears godoc
// @Summary List fiscal years present in a dataset
// @Tags datasets
// @Produce json
// @Param datasetType path string true "Dataset type"
// @Success 200 {object} map[string][]int
// @Security BearerAuth
// @Router /datasets/{datasetType}/years [get]
func (h *ingestionHandler) listYears(c *gin.Context) {
	datasetType, err := domain.ParseDatasetType(c.Param("datasetType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	years, err := h.ingestionService.DatasetYears(c.Request.Context(), datasetType)
	if err != nil {
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("failed to list dataset years", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list fiscal years"})
		return
	}
	if years == nil {
		years = []int{}
	}
	c.JSON(http.StatusOK, gin.H{"fiscalYears": years})
}

// purgeYear godoc
// @Summary Delete one fiscal year from a dataset
// @Description Removes the year's rows, purges its rollups and records a negative-count audit entry
// @Tags datasets
// @Produce json
// @Param datasetType path string true "Dataset type"
// @Param year path int true "Fiscal year"
// @Success 200 {object} map[string]any
// @Security BearerAuth
// @Router /datasets/{datasetType}/years/{year} [delete]
func (h *ingestionHandler) purgeYear(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	datasetType, err := domain.ParseDatasetType(c.Param("datasetType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fiscal year must be an integer"})
		return
	}
	actor, ok := middleware.GetActorFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	deleted, err := h.ingestionService.PurgeFiscalYear(c.Request.Context(), datasetType, year, actor)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Error("fiscal year purge failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete fiscal year"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletedCount": deleted, "fiscalYear": year})
}
