package bam

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rnaflow/internal/core/ports"
)

// NodeID is the unique identifier for the output checker Graft node.
const NodeID graft.ID = "adapter.output_checker"

func init() {
	graft.Register(graft.Node[ports.OutputChecker]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.OutputChecker, error) {
			return NewChecker(), nil
		},
	})
}
