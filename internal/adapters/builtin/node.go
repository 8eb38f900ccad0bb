package builtin

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rnaflow/internal/adapters/shell"
	"go.trai.ch/rnaflow/internal/core/ports"
)

// NodeID is the unique identifier for the task executor Graft node.
const NodeID graft.ID = "adapter.executor"

func init() {
	graft.Register(graft.Node[ports.Executor]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID},
		Run: func(ctx context.Context) (ports.Executor, error) {
			sh, err := graft.Dep[*shell.Executor](ctx)
			if err != nil {
				return nil, err
			}
			return NewExecutor(sh), nil
		},
	})
}
