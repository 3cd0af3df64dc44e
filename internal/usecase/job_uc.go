package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/adapter"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/logging"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/metrics"
)

// CommandOutcome is the tri-state result of a control command. Commands
// never fail for a stale or terminal target; retries stay idempotent.
type CommandOutcome string

const (
	// CommandApplied means the status transition took effect.
	CommandApplied CommandOutcome = "applied"
	// CommandNoop means the job is already terminal; nothing changed.
	CommandNoop CommandOutcome = "noop"
	// CommandRejected means the job is live but not in a status the
	// command is valid for (e.g. pause on a queued job).
	CommandRejected CommandOutcome = "rejected"
)

// JobUseCase is the public surface of the orchestrator core: job creation,
// control commands, and the observer read model.
type JobUseCase struct {
	jobs               repository.JobRepository
	handoffs           repository.HandoffRepository
	directory          repository.DirectoryRepository
	events             adapter.EventPublisher
	perEmployeeSeconds int
	log                *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.JobRepository,
	handoffs repository.HandoffRepository,
	directory repository.DirectoryRepository,
	events adapter.EventPublisher,
	perEmployeeSeconds int,
	logger *zerolog.Logger,
) *JobUseCase {
	l := logger.With().Str("component", "JobUseCase").Logger()
	return &JobUseCase{
		jobs:               jobs,
		handoffs:           handoffs,
		directory:          directory,
		events:             events,
		perEmployeeSeconds: perEmployeeSeconds,
		log:                &l,
	}
}

// Create validates and enqueues a new generation job. Validation errors
// are returned synchronously; a rejected job never appears in the queue.
func (uc *JobUseCase) Create(ctx context.Context, tenantID string, employeeIDs []string, generationMode string) (*model.Job, error) {
	defer logging.TraceDuration(uc.log, "JobUC.Create")()
	if tenantID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if len(employeeIDs) == 0 {
		return nil, domain.ErrEmptyEmployeeSet
	}
	ok, err := uc.directory.TenantExists(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrUnknownTenant
	}

	// Preserve order, drop duplicates.
	seen := make(map[string]struct{}, len(employeeIDs))
	ids := make([]string, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		if id == "" {
			return nil, domain.ErrInvalidArgument
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	job, err := model.NewJob(ulid.Make().String(), tenantID, ids, generationMode, uc.perEmployeeSeconds)
	if err != nil {
		return nil, err
	}
	if err := uc.jobs.Insert(ctx, nil, job); err != nil {
		return nil, err
	}
	metrics.IncJobCreated(string(job.Priority))
	uc.log.Info().
		Str("job_id", job.ID).
		Str("tenant_id", tenantID).
		Int("employees", len(ids)).
		Str("priority", string(job.Priority)).
		Msg("job queued")
	uc.publish(ctx, model.JobEventInsert, job)
	return job, nil
}

// Pause requests a processing job to stop at the next stage checkpoint.
func (uc *JobUseCase) Pause(ctx context.Context, jobID string) (CommandOutcome, error) {
	return uc.command(ctx, jobID, "pause",
		[]model.JobStatus{model.JobStatusProcessing}, model.JobStatusPaused, "")
}

// Resume lets a paused job continue from its persisted checkpoint.
func (uc *JobUseCase) Resume(ctx context.Context, jobID string) (CommandOutcome, error) {
	return uc.command(ctx, jobID, "resume",
		[]model.JobStatus{model.JobStatusPaused}, model.JobStatusProcessing, "")
}

// Cancel terminates a job from any non-terminal status. Employees already
// completed keep their outcome; the worker stops at the next checkpoint.
func (uc *JobUseCase) Cancel(ctx context.Context, jobID string) (CommandOutcome, error) {
	from := []model.JobStatus{
		model.JobStatusQueued,
		model.JobStatusPending,
		model.JobStatusProcessing,
		model.JobStatusPaused,
	}
	return uc.command(ctx, jobID, "cancel", from, model.JobStatusFailed, model.CancelledMessage)
}

func (uc *JobUseCase) command(ctx context.Context, jobID, name string, from []model.JobStatus, to model.JobStatus, errMsg string) (CommandOutcome, error) {
	defer logging.TraceDuration(uc.log, "JobUC.command")()
	applied, err := uc.jobs.CompareAndSetStatus(ctx, nil, jobID, from, to, errMsg)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return CommandRejected, domain.ErrNotFound
		}
		return CommandRejected, err
	}
	outcome := CommandApplied
	if !applied {
		status, err := uc.jobs.Status(ctx, jobID)
		if err != nil {
			return CommandRejected, err
		}
		outcome = CommandRejected
		if status == model.JobStatusCompleted || status == model.JobStatusFailed {
			outcome = CommandNoop
		}
	}
	metrics.IncJobCommand(name, string(outcome))
	if outcome == CommandApplied && to == model.JobStatusFailed && errMsg == model.CancelledMessage {
		metrics.IncJobFinished("cancelled")
	}
	uc.log.Info().
		Str("job_id", jobID).
		Str("command", name).
		Str("outcome", string(outcome)).
		Msg("job command")
	if outcome == CommandApplied {
		if job, err := uc.jobs.FindByID(ctx, nil, jobID); err == nil {
			uc.publish(ctx, model.JobEventUpdate, job)
		}
	}
	return outcome, nil
}

// Get returns the flattened progress snapshot for one job.
func (uc *JobUseCase) Get(ctx context.Context, jobID string) (model.ProgressSnapshot, error) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return model.ProgressSnapshot{}, err
	}
	return job.Snapshot(), nil
}

// List returns snapshots of a tenant's jobs in the given statuses, most
// recent first. Empty statusIn means all statuses.
func (uc *JobUseCase) List(ctx context.Context, tenantID string, statusIn []model.JobStatus, limit int) ([]model.ProgressSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	jobs, err := uc.jobs.ListByTenant(ctx, tenantID, statusIn, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.ProgressSnapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	return out, nil
}

// Handoffs returns the stage audit trail of one job, oldest first.
func (uc *JobUseCase) Handoffs(ctx context.Context, jobID string) ([]*model.HandoffRecord, error) {
	return uc.handoffs.ListByJob(ctx, jobID)
}

func (uc *JobUseCase) publish(ctx context.Context, typ model.JobEventType, job *model.Job) {
	if uc.events == nil {
		return
	}
	// Event publication is best effort; the periodic re-poll bounds the
	// staleness an observer can see after a missed event.
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := uc.events.Publish(pubCtx, model.JobEvent{EventType: typ, Snapshot: job.Snapshot()}); err != nil {
		uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("event publish failed")
	}
}
