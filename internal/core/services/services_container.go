package services

import (
	portsrepo "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/repositories"
	portssvc "github.com/opengovtools/fiscal_transparency_app/internal/core/ports/services"
)

// NewServiceContainer wires the ingestion pipeline's services over the
// repository provider.
func NewServiceContainer(cfg IngestionConfig, repos portsrepo.RepositoryProvider) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	container.Rollup = NewRollupService(repos.RollupRepo, repos.DatasetRepo)
	container.Audit = NewAuditService(repos.AuditRepo)
	container.Ingestion = NewIngestionService(
		cfg,
		repos.DatasetRepo,
		container.Rollup,
		container.Audit,
		repos.RunRepo,
		repos.SettingsRepo,
	)

	return container
}
