package repositories

// RepositoryProvider bundles every repository the service layer needs.
type RepositoryProvider struct {
	DatasetRepo  DatasetRepositoryFacade
	RollupRepo   RollupRepository
	AuditRepo    AuditRepository
	RunRepo      RunRepository
	SettingsRepo SettingsRepository
}
