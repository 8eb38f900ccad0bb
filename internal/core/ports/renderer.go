package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for run output rendering.
// It decouples telemetry collection from presentation.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and flush buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	Wait() error

	// OnPlanEmit is called when the scheduler has selected the tasks of a run.
	OnPlanEmit(tasks []string, deps map[string][]string, targets []string)

	// OnTaskStart is called when a task span starts. reason says why the task
	// executes; upToDate is true for tasks skipped because their outputs are fresh.
	OnTaskStart(spanID, name, reason string, startTime time.Time, upToDate bool)

	// OnTaskLog is called when a task emits output.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a task span ends. err is nil on success.
	OnTaskComplete(spanID string, endTime time.Time, err error, upToDate bool)
}
