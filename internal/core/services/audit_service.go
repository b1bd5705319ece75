package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
	portssvc "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/services"
	"github.com/opengovtools/fiscal_transparency_app/internal/middleware"
)

// auditWriteTimeout bounds the detached audit write after the run context
// has been canceled or has expired.
const auditWriteTimeout = 10 * time.Second

// auditService appends immutable ingestion audit entries.
type auditService struct {
	auditRepo portsrepo.AuditRepository
}

// NewAuditService creates the audit recorder.
func NewAuditService(auditRepo portsrepo.AuditRepository) portssvc.AuditSvcFacade {
	return &auditService{auditRepo: auditRepo}
}

var _ portssvc.AuditSvcFacade = (*auditService)(nil)

// Record appends one audit entry. Failure to write the trail never fails an
// otherwise-successful ingestion, so errors are logged and swallowed. The
// write runs on a detached context: an entry must still land when the run
// itself timed out or the caller disconnected.
func (s *auditService) Record(ctx context.Context, entry domain.AuditEntry) {
	if entry.AuditID == "" {
		entry.AuditID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.auditRepo.SaveEntry(writeCtx, entry); err != nil {
		middleware.GetLoggerFromCtx(ctx).Error("audit entry could not be written",
			slog.String("dataset", string(entry.DatasetType)),
			slog.String("mode", string(entry.Mode)),
			slog.Int("row_count", entry.RowCount),
			slog.String("error", err.Error()))
	}
}

// ListEntries returns recent audit entries, newest first.
func (s *auditService) ListEntries(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	return s.auditRepo.ListEntries(ctx, limit, offset)
}
