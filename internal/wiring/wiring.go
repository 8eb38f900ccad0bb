// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/rnaflow/internal/adapters/bam"
	_ "go.trai.ch/rnaflow/internal/adapters/builtin"
	_ "go.trai.ch/rnaflow/internal/adapters/cas"
	_ "go.trai.ch/rnaflow/internal/adapters/config"
	_ "go.trai.ch/rnaflow/internal/adapters/fs"
	_ "go.trai.ch/rnaflow/internal/adapters/logger"
	_ "go.trai.ch/rnaflow/internal/adapters/shell"
	// Register app nodes.
	_ "go.trai.ch/rnaflow/internal/app"
)
