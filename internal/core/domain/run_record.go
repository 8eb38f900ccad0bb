package domain

import "time"

// RecordStatus tells whether the last attempt of a task ran to completion.
type RecordStatus string

const (
	// RecordIncomplete marks a task whose last attempt started but never finished successfully.
	RecordIncomplete RecordStatus = "incomplete"
	// RecordComplete marks a task whose last attempt produced all declared outputs.
	RecordComplete RecordStatus = "complete"
)

// RunRecord is what the store remembers about the last attempt of a task.
type RunRecord struct {
	TaskName    string       `json:"task_name,omitzero"`
	Fingerprint string       `json:"fingerprint,omitzero"`
	Status      RecordStatus `json:"status,omitzero"`
	RunID       string       `json:"run_id,omitzero"`
	StartedAt   time.Time    `json:"started_at,omitzero"`
	FinishedAt  time.Time    `json:"finished_at,omitzero"`
}
