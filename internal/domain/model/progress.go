package model

import "time"

// ProgressSnapshot is the flattened read model handed to observers. It is
// sufficient to render both a coarse progress bar and an expanded
// per-stage view without further queries.
type ProgressSnapshot struct {
	JobID                    string    `json:"job_id"`
	TenantID                 string    `json:"tenant_id"`
	Status                   JobStatus `json:"status"`
	TotalEmployees           int       `json:"total_employees"`
	SuccessfulCount          int       `json:"successful_count"`
	FailedCount              int       `json:"failed_count"`
	ProgressPercentage       int       `json:"progress_percentage"`
	CurrentPhase             string    `json:"current_phase"`
	CurrentEmployeeName      string    `json:"current_employee_name,omitempty"`
	CurrentStageID           string    `json:"current_stage_id,omitempty"`
	CompletedStageIDs        []string  `json:"completed_stage_ids,omitempty"`
	EstimatedDurationSeconds int       `json:"estimated_duration_seconds"`
	ErrorMessage             string    `json:"error_message,omitempty"`
	UpdatedAt                time.Time `json:"updated_at"`
}

type JobEventType string

const (
	JobEventInsert JobEventType = "insert"
	JobEventUpdate JobEventType = "update"
	JobEventDelete JobEventType = "delete"
)

// JobEvent is one entry of the change-notification stream. Delivery is
// at-least-once; consumers reconcile duplicates and reordering against
// Snapshot.UpdatedAt.
type JobEvent struct {
	EventType JobEventType     `json:"event_type"`
	Snapshot  ProgressSnapshot `json:"snapshot"`
}
