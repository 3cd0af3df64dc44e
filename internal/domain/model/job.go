package model

import (
	"fmt"
	"math"
	"time"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPaused     JobStatus = "paused"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// CancelledMessage is the reserved error message that marks a failed job as
// user-cancelled rather than faulted. Inherited behavior; see Job.Cancelled.
const CancelledMessage = "Cancelled by user"

type JobPriority string

const (
	PriorityHigh   JobPriority = "high"
	PriorityMedium JobPriority = "medium"
	PriorityLow    JobPriority = "low"
)

// PriorityForBatch derives scheduling priority from batch size. Small
// batches run first so a single-employee regenerate is not starved behind
// a company-wide run.
func PriorityForBatch(employees int) JobPriority {
	switch {
	case employees <= 5:
		return PriorityHigh
	case employees <= 20:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Rank maps a priority to a sortable integer, higher runs first.
func (p JobPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Job is one batch request to generate course content for a set of
// employees. It is created queued, claimed and mutated by exactly one
// worker, and retained after reaching a terminal state for history.
type Job struct {
	ID             string
	TenantID       string
	Status         JobStatus
	GenerationMode string

	// EmployeeIDs is fixed at creation and processed in order.
	EmployeeIDs []string

	SuccessfulCount int
	FailedCount     int

	CurrentPhase        string
	CurrentEmployeeID   string
	CurrentEmployeeName string
	CurrentStageID      string
	CompletedStageIDs   []string

	Priority                 JobPriority
	EstimatedDurationSeconds int

	ErrorMessage string

	CreatedAt           time.Time
	QueuedAt            time.Time
	ProcessingStartedAt time.Time
	UpdatedAt           time.Time
	HeartbeatAt         time.Time
}

const (
	PhaseQueued    = "Waiting in queue"
	PhaseStarting  = "Starting"
	PhasePaused    = "Paused"
	PhaseCompleted = "Completed"
	PhaseFailed    = "Failed"
)

// PhaseProcessing renders the "Processing Employee i of n" macro phase.
func PhaseProcessing(position, total int) string {
	return fmt.Sprintf("Processing Employee %d of %d", position, total)
}

// NewJob validates and builds a queued job. The employee set must be
// non-empty; priority and duration estimate are derived here, once.
func NewJob(id, tenantID string, employeeIDs []string, generationMode string, perEmployeeSeconds int) (*Job, error) {
	if id == "" || tenantID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if len(employeeIDs) == 0 {
		return nil, domain.ErrEmptyEmployeeSet
	}
	if perEmployeeSeconds <= 0 {
		perEmployeeSeconds = DefaultPerEmployeeSeconds
	}
	now := time.Now()
	ids := make([]string, len(employeeIDs))
	copy(ids, employeeIDs)
	return &Job{
		ID:                       id,
		TenantID:                 tenantID,
		Status:                   JobStatusQueued,
		GenerationMode:           generationMode,
		EmployeeIDs:              ids,
		CurrentPhase:             PhaseQueued,
		Priority:                 PriorityForBatch(len(ids)),
		EstimatedDurationSeconds: len(ids) * perEmployeeSeconds,
		CreatedAt:                now,
		QueuedAt:                 now,
		UpdatedAt:                now,
	}, nil
}

// DefaultPerEmployeeSeconds is the heuristic wall-clock cost of pushing one
// employee through the full pipeline.
const DefaultPerEmployeeSeconds = 270

func (j *Job) TotalEmployees() int { return len(j.EmployeeIDs) }

// Terminal reports whether the job can no longer transition.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Active reports whether the job counts against its tenant's single-flight
// limit: claimed or in flight, including paused.
func (j *Job) Active() bool {
	switch j.Status {
	case JobStatusPending, JobStatusProcessing, JobStatusPaused:
		return true
	}
	return false
}

// Cancelled reports whether a failed job was cancelled by a user rather
// than faulted. Cancellation is encoded as a failure with a reserved
// message; this helper is the only place that string is interpreted.
func (j *Job) Cancelled() bool {
	return j.Status == JobStatusFailed && j.ErrorMessage == CancelledMessage
}

// CanTransition reports whether from -> to is a legal status move.
// Terminal states absorb; cancellation (-> failed) is legal from any
// non-terminal state.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusPending || to == JobStatusFailed
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed || to == JobStatusQueued
	case JobStatusProcessing:
		return to == JobStatusPaused || to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusQueued
	case JobStatusPaused:
		return to == JobStatusProcessing || to == JobStatusFailed || to == JobStatusQueued
	default:
		return false
	}
}

// ProgressPercentage derives overall progress from the outcome counters
// plus partial credit for the stages the in-flight employee has finished.
// Monotonic as long as counters and completed stages never move backwards.
func (j *Job) ProgressPercentage() int {
	total := j.TotalEmployees()
	if total == 0 {
		return 0
	}
	done := float64(j.SuccessfulCount + j.FailedCount)
	if j.CurrentEmployeeID != "" && len(j.CompletedStageIDs) > 0 {
		done += float64(len(j.CompletedStageIDs)) / float64(NumStages())
	}
	pct := int(math.Round(100 * done / float64(total)))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Snapshot flattens the job into the observer read model.
func (j *Job) Snapshot() ProgressSnapshot {
	completed := make([]string, len(j.CompletedStageIDs))
	copy(completed, j.CompletedStageIDs)
	return ProgressSnapshot{
		JobID:                    j.ID,
		TenantID:                 j.TenantID,
		Status:                   j.Status,
		TotalEmployees:           j.TotalEmployees(),
		SuccessfulCount:          j.SuccessfulCount,
		FailedCount:              j.FailedCount,
		ProgressPercentage:       j.ProgressPercentage(),
		CurrentPhase:             j.CurrentPhase,
		CurrentEmployeeName:      j.CurrentEmployeeName,
		CurrentStageID:           j.CurrentStageID,
		CompletedStageIDs:        completed,
		EstimatedDurationSeconds: j.EstimatedDurationSeconds,
		ErrorMessage:             j.ErrorMessage,
		UpdatedAt:                j.UpdatedAt,
	}
}
