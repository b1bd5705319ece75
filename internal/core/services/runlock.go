package services

import (
	"sync"

	"github.com/opengovtools/fiscal_transparency_app/internal/core/domain"
)

// runLocks serializes ingestion runs per dataset. The replace modes are not
// safe under concurrent execution against the same target, so a conflicting
// run is rejected up front instead of silently interleaving deletes and
// inserts.
type runLocks struct {
	mu   sync.Mutex
	held map[domain.DatasetType]bool
}

func newRunLocks() *runLocks {
	return &runLocks{held: make(map[domain.DatasetType]bool)}
}

// tryAcquire claims the dataset for one run. It never blocks; a false return
// means another run holds the dataset.
func (l *runLocks) tryAcquire(datasetType domain.DatasetType) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[datasetType] {
		return false
	}
	l.held[datasetType] = true
	return true
}

func (l *runLocks) release(datasetType domain.DatasetType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, datasetType)
}
