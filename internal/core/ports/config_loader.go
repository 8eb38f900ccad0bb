package ports

import "go.trai.ch/rnaflow/internal/core/domain"

// ConfigLoader defines the interface for loading the pipeline and its run configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// LoadRunConfig reads, overrides from the environment and validates the run configuration.
	LoadRunConfig(path string) (*domain.RunConfig, error)

	// Load reads the pipeline definition and materializes its rules into a validated task graph.
	Load(pipelinePath string, cfg *domain.RunConfig) (*domain.Graph, error)
}
