package ports

import "go.trai.ch/rnaflow/internal/core/domain"

// RunRecordStore defines the interface for storing and retrieving run records.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type RunRecordStore interface {
	// Get retrieves the run record for a given task name.
	// Returns nil, nil if not found.
	Get(root, taskName string) (*domain.RunRecord, error)

	// Put stores the run record.
	Put(root string, record domain.RunRecord) error
}
