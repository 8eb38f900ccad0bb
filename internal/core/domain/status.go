package domain

// TaskStatus represents the lifecycle state of a task in a run.
type TaskStatus string

const (
	// StatusPending indicates the task is waiting for dependencies or scheduling.
	StatusPending TaskStatus = "pending"
	// StatusRunning indicates the task is currently executing.
	StatusRunning TaskStatus = "running"
	// StatusCompleted indicates the task executed successfully.
	StatusCompleted TaskStatus = "completed"
	// StatusUpToDate indicates the task was not executed because its outputs are fresh.
	StatusUpToDate TaskStatus = "up-to-date"
	// StatusFailed indicates the task execution failed.
	StatusFailed TaskStatus = "failed"
	// StatusSkipped indicates the task never ran because a dependency failed.
	StatusSkipped TaskStatus = "skipped"
)

// IsTerminal reports whether the status is final for a run.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusUpToDate, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Reason explains why a task has to run. The empty reason means the task is up to date.
type Reason string

const (
	// ReasonUpToDate means every output exists and is newer than every input.
	ReasonUpToDate Reason = ""
	// ReasonForced means the user asked to re-execute regardless of staleness.
	ReasonForced Reason = "forced"
	// ReasonUpstream means a dependency is executed in the same run.
	ReasonUpstream Reason = "upstream changed"
	// ReasonMissingOutput means at least one declared output is absent.
	ReasonMissingOutput Reason = "missing output"
	// ReasonIncomplete means the previous attempt never finished.
	ReasonIncomplete Reason = "incomplete previous run"
	// ReasonDefinitionChanged means the rendered command, paths, params or environment changed.
	ReasonDefinitionChanged Reason = "definition changed"
	// ReasonNoOutputs means the task declares no outputs, so it can never be fresh.
	ReasonNoOutputs Reason = "no declared outputs"
	// ReasonInputNewer means an input was modified after the oldest output.
	ReasonInputNewer Reason = "input newer than output"
)
