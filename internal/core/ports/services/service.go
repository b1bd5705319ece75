package services

// ServiceContainer bundles the service facades handed to the HTTP layer.
type ServiceContainer struct {
	Ingestion IngestionSvcFacade
	Rollup    RollupSvcFacade
	Audit     AuditSvcFacade
}
