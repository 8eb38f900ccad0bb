package ports

import (
	"context"
	"time"
)

// Verifier inspects declared files on disk.
//
//go:generate mockgen -source=verifier.go -destination=mocks/mock_verifier.go -package=mocks
type Verifier interface {
	// MissingOutputs returns the outputs that do not exist under root.
	MissingOutputs(root string, outputs []string) ([]string, error)

	// NewestModTime returns the latest modification time among paths.
	// Directories contribute the newest file they contain.
	NewestModTime(root string, paths []string) (time.Time, error)

	// OldestModTime returns the earliest modification time among paths.
	// Directories contribute the oldest file they contain.
	OldestModTime(root string, paths []string) (time.Time, error)
}

// OutputChecker validates the content of produced outputs.
type OutputChecker interface {
	// Check runs the named check against path. Paths the check does not apply to pass.
	Check(ctx context.Context, check, path string) error
}
