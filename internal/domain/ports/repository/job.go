package repository

import (
	"context"
	"time"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
)

// ProgressUpdate is the partial field set a worker persists after a state
// transition. The repository never performs blind overwrites of the full
// row; only these fields (plus updated_at and heartbeat_at) are written.
type ProgressUpdate struct {
	SuccessfulCount     int
	FailedCount         int
	CurrentPhase        string
	CurrentEmployeeID   string
	CurrentEmployeeName string
	CurrentStageID      string
	CompletedStageIDs   []string
	ProgressPercentage  int
	ProcessingStartedAt time.Time
}

// JobRepository is the orchestrator's contract with the durable job record
// store. The job row is mutated by exactly one worker at a time; control
// commands go through CompareAndSetStatus so a command that targets a
// status the job has already left is rejected, not silently applied.
type JobRepository interface {
	// Insert creates a row in queued status. Returns domain.ErrAlreadyExists
	// on id collision.
	Insert(ctx context.Context, tx Tx, job *model.Job) error

	FindByID(ctx context.Context, tx Tx, jobID string) (*model.Job, error)

	// ListByTenant returns jobs in the given statuses, most recent first.
	// Used by observers, not by claim logic.
	ListByTenant(ctx context.Context, tenantID string, statusIn []model.JobStatus, limit int) ([]*model.Job, error)

	// ClaimNext atomically selects and marks pending the next eligible
	// queued job: tenants already at maxActivePerTenant active jobs
	// (pending/processing/paused) are skipped; among the rest, priority
	// descending, then createdAt ascending. Returns domain.ErrNotFound
	// when nothing is eligible.
	ClaimNext(ctx context.Context, maxActivePerTenant int) (*model.Job, error)

	// UpdateProgress persists a worker-side state transition. It bumps
	// updated_at and heartbeat_at and leaves status untouched.
	UpdateProgress(ctx context.Context, tx Tx, jobID string, upd ProgressUpdate) error

	// CompareAndSetStatus moves status from any of `from` to `to`,
	// recording errorMessage when non-empty. Returns false without error
	// when the current status is not in `from`.
	CompareAndSetStatus(ctx context.Context, tx Tx, jobID string, from []model.JobStatus, to model.JobStatus, errorMessage string) (bool, error)

	// Status returns only the current status, for checkpoint polls.
	Status(ctx context.Context, jobID string) (model.JobStatus, error)

	// Heartbeat bumps heartbeat_at for a job a worker is still driving.
	Heartbeat(ctx context.Context, jobID string) error

	// PromoteAged raises low-priority queued jobs older than the cutoff to
	// medium so they cannot be starved forever. Returns rows affected.
	PromoteAged(ctx context.Context, olderThan time.Time) (int, error)

	// ReclaimStale requeues pending/processing jobs whose heartbeat is
	// older than the cutoff (owning worker presumed gone). Paused jobs are
	// left alone so a later resume stays an explicit user action.
	// Checkpoint fields are preserved so the next claim resumes, not
	// restarts. Returns rows affected.
	ReclaimStale(ctx context.Context, heartbeatOlderThan time.Time) (int, error)
}
