package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rnaflow/internal/adapters/bam"     //nolint:depguard // Wired in app layer
	"go.trai.ch/rnaflow/internal/adapters/builtin" //nolint:depguard // Wired in app layer
	"go.trai.ch/rnaflow/internal/adapters/cas"     //nolint:depguard // Wired in app layer
	"go.trai.ch/rnaflow/internal/adapters/config"  //nolint:depguard // Wired in app layer
	"go.trai.ch/rnaflow/internal/adapters/fs"      //nolint:depguard // Wired in app layer
	"go.trai.ch/rnaflow/internal/adapters/logger"  //nolint:depguard // Wired in app layer
	"go.trai.ch/rnaflow/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			builtin.NodeID,
			logger.NodeID,
			cas.NodeID,
			fs.HasherNodeID,
			fs.ResolverNodeID,
			fs.VerifierNodeID,
			bam.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{App: app, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	executor, err := graft.Dep[ports.Executor](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.RunRecordStore](ctx)
	if err != nil {
		return nil, err
	}

	hasher, err := graft.Dep[ports.Hasher](ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := graft.Dep[ports.InputResolver](ctx)
	if err != nil {
		return nil, err
	}

	verifier, err := graft.Dep[ports.Verifier](ctx)
	if err != nil {
		return nil, err
	}

	checker, err := graft.Dep[ports.OutputChecker](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, executor, log, store, hasher, resolver, verifier, checker), nil
}
