package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rnaflow/internal/core/ports"
)

// NodeID is the unique identifier for the run record store Graft node.
const NodeID graft.ID = "adapter.run_record_store"

func init() {
	graft.Register(graft.Node[ports.RunRecordStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.RunRecordStore, error) {
			return NewStore(), nil
		},
	})
}
