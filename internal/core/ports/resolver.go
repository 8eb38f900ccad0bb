package ports

// InputResolver defines the interface for resolving input files.
//
//go:generate mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type InputResolver interface {
	// ResolveInputs resolves the given input paths and glob patterns relative to root.
	// It fails with domain.ErrInputNotFound when a path or pattern matches nothing.
	ResolveInputs(inputs []string, root string) ([]string, error)
}
