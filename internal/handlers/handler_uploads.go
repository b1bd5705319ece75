package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	portssvc "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/services"
	"github.com/opengovtools/fiscal_transparency_app/internal/dto"
	"github.com/opengovtools/fiscal_transparency_app/internal/middleware"
)

const (
	defaultAuditPageSize = 25
	maxAuditPageSize     = 200
)

// uploadsHandler serves the ingestion audit trail.
type uploadsHandler struct {
	auditService portssvc.AuditSvcFacade
}

func newUploadsHandler(as portssvc.AuditSvcFacade) *uploadsHandler {
	return &uploadsHandler{auditService: as}
}

// registerUploadsRoutes registers the audit trail routes.
func registerUploadsRoutes(rg *gin.RouterGroup, auditService portssvc.AuditSvcFacade) {
	h := newUploadsHandler(auditService)

	uploads := rg.Group("/uploads")
	{
		uploads.GET("", h.listUploads)
	}
}

// listUploads godoc
// @Summary List ingestion audit entries
// @Description Returns recent upload and deletion audit records, newest first
// @Tags uploads
// @Produce json
// @Param limit query int false "Page size" default(25)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]any
// @Security BearerAuth
// @Router /uploads [get]
func (h *uploadsHandler) listUploads(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAuditPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultAuditPageSize
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	entries, err := h.auditService.ListEntries(c.Request.Context(), limit, offset)
	if err != nil {
		logger.Error("failed to list audit entries", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list uploads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploads": dto.ToAuditEntryResponses(entries),
		"limit":   limit,
		"offset":  offset,
	})
}
