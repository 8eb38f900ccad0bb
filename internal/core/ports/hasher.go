package ports

import "go.trai.ch/rnaflow/internal/core/domain"

// Hasher defines the interface for fingerprinting task definitions.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// Fingerprint hashes everything that defines what a task produces: command, paths,
	// builtin step, params and environment. File contents are not read.
	Fingerprint(task *domain.Task) (string, error)
}
