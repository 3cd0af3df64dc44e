package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/adapter"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/logging"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/metrics"
)

// Runner drives one claimed job through the pipeline: employees in array
// order, stages in pipeline order, a persisted checkpoint and a change
// event after every transition. Control commands are observed between
// stages, never mid-stage; the stage call itself is non-interruptible.
type Runner struct {
	jobs      repository.JobRepository
	handoffs  repository.HandoffRepository
	directory repository.DirectoryRepository
	tm        repository.TransactionManager
	stages    adapter.StageRunner
	events    adapter.EventPublisher

	stageTimeout      time.Duration
	heartbeatInterval time.Duration
	pausePoll         time.Duration

	log *zerolog.Logger
}

func NewRunner(
	jobs repository.JobRepository,
	handoffs repository.HandoffRepository,
	directory repository.DirectoryRepository,
	tm repository.TransactionManager,
	stages adapter.StageRunner,
	events adapter.EventPublisher,
	stageTimeout, heartbeatInterval, pausePoll time.Duration,
	logger *zerolog.Logger,
) *Runner {
	if pausePoll <= 0 {
		pausePoll = 2 * time.Second
	}
	l := logger.With().Str("component", "JobRunner").Logger()
	return &Runner{
		jobs:              jobs,
		handoffs:          handoffs,
		directory:         directory,
		tm:                tm,
		stages:            stages,
		events:            events,
		stageTimeout:      stageTimeout,
		heartbeatInterval: heartbeatInterval,
		pausePoll:         pausePoll,
		log:               &l,
	}
}

// checkpointAction is what the runner does after consulting job status at
// a safe point between stages.
type checkpointAction int

const (
	actContinue checkpointAction = iota
	actStop                      // terminal or reclaimed; cease all work
)

// Run drives the claimed job until it is terminal, paused ownership ends,
// or the context is cancelled. The job must be in pending status.
func (r *Runner) Run(ctx context.Context, job *model.Job) error {
	ctx = logging.WithTenantID(ctx, job.TenantID)
	ctx = logging.WithJobID(ctx, job.ID)
	log := *logging.With(ctx, r.log)

	applied, err := r.jobs.CompareAndSetStatus(ctx, nil, job.ID,
		[]model.JobStatus{model.JobStatusPending}, model.JobStatusProcessing, "")
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	if !applied {
		// Cancelled between claim and start, or reclaimed. Leave it.
		log.Info().Msg("job no longer pending, releasing")
		return nil
	}
	job.Status = model.JobStatusProcessing

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go r.heartbeatLoop(hbCtx, job.ID)

	names, err := r.directory.EmployeeNames(ctx, job.TenantID, job.EmployeeIDs)
	if err != nil {
		log.Warn().Err(err).Msg("employee name lookup failed, falling back to ids")
		names = map[string]string{}
	}

	total := job.TotalEmployees()
	if job.ProcessingStartedAt.IsZero() {
		job.ProcessingStartedAt = time.Now()
	}

	// Fresh batch, not a resume: surface a brief Starting phase before the
	// first employee's label takes over.
	if job.SuccessfulCount+job.FailedCount == 0 && job.CurrentEmployeeID == "" {
		job.CurrentPhase = model.PhaseStarting
		if err := r.persist(ctx, job); err != nil {
			return r.fault(ctx, job, &log, err)
		}
		r.publish(ctx, job.ID)
	}

	// Employees are processed in array order, so the first
	// successful+failed entries are exactly the ones already finished.
	// A reclaimed or resumed job picks up from that index.
	for i := job.SuccessfulCount + job.FailedCount; i < total; i++ {
		if act, err := r.checkpoint(ctx, job, &log); err != nil {
			return r.fault(ctx, job, &log, err)
		} else if act == actStop {
			return nil
		}

		empID := job.EmployeeIDs[i]
		name := names[empID]
		if name == "" {
			name = empID
		}

		resumeFrom := 0
		if job.CurrentEmployeeID == empID {
			// Same employee that was in flight at pause/reclaim time:
			// stages already in the checkpoint are not re-executed.
			resumeFrom = len(job.CompletedStageIDs)
		} else {
			job.CompletedStageIDs = nil
		}
		job.CurrentEmployeeID = empID
		job.CurrentEmployeeName = name
		job.CurrentPhase = model.PhaseProcessing(i+1, total)

		stop, err := r.runEmployee(ctx, job, resumeFrom)
		if err != nil {
			return r.fault(ctx, job, &log, err)
		}
		if stop {
			return nil
		}
	}

	return r.finish(ctx, job, &log)
}

// runEmployee pushes one employee through the remaining stages. Returns
// stop=true when a checkpoint said to cease work (pause handoff to another
// claim, cancellation, reclaim).
func (r *Runner) runEmployee(ctx context.Context, job *model.Job, fromStage int) (stop bool, err error) {
	stages := model.Stages()
	ctx = logging.WithEmployeeID(ctx, job.CurrentEmployeeID)
	empLog := logging.With(ctx, r.log)

	for si := fromStage; si < len(stages); si++ {
		stage := stages[si]
		job.CurrentStageID = stage.ID
		if err := r.persist(ctx, job); err != nil {
			return false, err
		}
		r.publish(ctx, job.ID)

		start := time.Now()
		stageErr := r.runStage(ctx, job, stage)
		elapsed := time.Since(start)
		metrics.ObserveStage(stage.ID, elapsed.Seconds(), stageErr == nil)

		if stageErr != nil {
			// One employee's failure never aborts the batch: record its
			// terminal outcome in the audit trail, count it, move on to
			// the next employee.
			empLog.Warn().Err(stageErr).Str("stage", stage.ID).Dur("duration", elapsed).Msg("stage failed")
			metrics.IncEmployeeProcessed(string(model.EmployeeStatusFailed))
			rec := &model.HandoffRecord{
				JobID:      job.ID,
				EmployeeID: job.CurrentEmployeeID,
				FromStage:  stage.ID,
				Outcome:    model.EmployeeStatusFailed,
				Error:      stageErr.Error(),
			}
			job.FailedCount++
			job.CurrentEmployeeID = ""
			job.CurrentEmployeeName = ""
			job.CurrentStageID = ""
			job.CompletedStageIDs = nil
			if err := r.persistTransition(ctx, job, rec); err != nil {
				return false, err
			}
			r.publish(ctx, job.ID)
			return false, nil
		}

		empLog.Debug().Str("stage", stage.ID).Dur("duration", elapsed).Msg("stage complete")
		next, hasNext := model.NextStage(stage.ID)
		rec := &model.HandoffRecord{
			JobID:      job.ID,
			EmployeeID: job.CurrentEmployeeID,
			FromStage:  stage.ID,
		}
		job.CompletedStageIDs = append(job.CompletedStageIDs, stage.ID)
		if hasNext {
			rec.ToStage = next.ID
			job.CurrentStageID = next.ID
		} else {
			rec.Outcome = model.EmployeeStatusCompleted
			job.CurrentStageID = ""
		}
		if err := r.persistTransition(ctx, job, rec); err != nil {
			return false, err
		}
		r.publish(ctx, job.ID)

		if act, err := r.checkpoint(ctx, job, empLog); err != nil {
			return false, err
		} else if act == actStop {
			return true, nil
		}
	}

	metrics.IncEmployeeProcessed(string(model.EmployeeStatusCompleted))
	job.SuccessfulCount++
	job.CurrentEmployeeID = ""
	job.CurrentEmployeeName = ""
	job.CurrentStageID = ""
	job.CompletedStageIDs = nil
	if err := r.persist(ctx, job); err != nil {
		return false, err
	}
	r.publish(ctx, job.ID)
	return false, nil
}

func (r *Runner) runStage(ctx context.Context, job *model.Job, stage model.PipelineStage) error {
	stageCtx := ctx
	if r.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, r.stageTimeout)
		defer cancel()
	}
	return r.stages.RunStage(stageCtx, adapter.StageRequest{
		JobID:          job.ID,
		TenantID:       job.TenantID,
		EmployeeID:     job.CurrentEmployeeID,
		GenerationMode: job.GenerationMode,
		Stage:          stage,
	})
}

// checkpoint consults the persisted status between stages. Paused blocks
// here (heartbeating via the background loop) until resumed or cancelled.
func (r *Runner) checkpoint(ctx context.Context, job *model.Job, log *zerolog.Logger) (checkpointAction, error) {
	for {
		status, err := r.jobs.Status(ctx, job.ID)
		if err != nil {
			return actStop, err
		}
		switch status {
		case model.JobStatusProcessing:
			if job.Status == model.JobStatusPaused {
				log.Info().Msg("job resumed")
			}
			job.Status = model.JobStatusProcessing
			return actContinue, nil
		case model.JobStatusPaused:
			if job.Status != model.JobStatusPaused {
				log.Info().Msg("job paused at checkpoint")
				job.Status = model.JobStatusPaused
			}
			select {
			case <-ctx.Done():
				return actStop, ctx.Err()
			case <-time.After(r.pausePoll):
			}
		case model.JobStatusFailed:
			// Cancellation (or an external fault) landed; completed
			// employees keep their outcome, nothing further is marked.
			log.Info().Str("status", string(status)).Msg("job terminated externally, stopping")
			return actStop, nil
		default:
			// queued: the stale sweep reclaimed the row from under us.
			// Another worker owns the job now; this one backs off.
			log.Warn().Str("status", string(status)).Msg("job reclaimed, releasing")
			return actStop, nil
		}
	}
}

func (r *Runner) finish(ctx context.Context, job *model.Job, log *zerolog.Logger) error {
	// Every employee reached a terminal per-employee state. The job
	// completes regardless of how many individually failed; total failure
	// shows only in failedCount.
	job.CurrentPhase = model.PhaseCompleted
	job.CurrentEmployeeID = ""
	job.CurrentEmployeeName = ""
	job.CurrentStageID = ""
	job.CompletedStageIDs = nil
	if err := r.persist(ctx, job); err != nil {
		return r.fault(ctx, job, log, err)
	}
	applied, err := r.jobs.CompareAndSetStatus(ctx, nil, job.ID,
		[]model.JobStatus{model.JobStatusProcessing}, model.JobStatusCompleted, "")
	if err != nil {
		return r.fault(ctx, job, log, err)
	}
	if !applied {
		// Lost the race to a concurrent cancel; its outcome stands.
		log.Info().Msg("finish superseded by a concurrent command")
		return nil
	}
	job.Status = model.JobStatusCompleted
	metrics.IncJobFinished(string(model.JobStatusCompleted))
	r.publish(ctx, job.ID)
	log.Info().
		Int("successful", job.SuccessfulCount).
		Int("failed", job.FailedCount).
		Msg("job completed")
	return nil
}

// fault marks the job failed after a pipeline-level error (storage
// unreachable, etc.). The last persisted checkpoint stays intact so a
// recovery pass can resume rather than restart.
func (r *Runner) fault(ctx context.Context, job *model.Job, log *zerolog.Logger, cause error) error {
	log.Error().Err(cause).Msg("pipeline-level fault")
	from := []model.JobStatus{model.JobStatusProcessing, model.JobStatusPaused, model.JobStatusPending}
	applied, err := r.jobs.CompareAndSetStatus(context.Background(), nil, job.ID, from,
		model.JobStatusFailed, cause.Error())
	if err != nil {
		log.Error().Err(err).Msg("could not mark job failed")
		return cause
	}
	if applied {
		job.Status = model.JobStatusFailed
		job.ErrorMessage = cause.Error()
		job.CurrentPhase = model.PhaseFailed
		metrics.IncJobFinished(string(model.JobStatusFailed))
		r.publish(context.Background(), job.ID)
	}
	return cause
}

func progressUpdateOf(job *model.Job) repository.ProgressUpdate {
	return repository.ProgressUpdate{
		SuccessfulCount:     job.SuccessfulCount,
		FailedCount:         job.FailedCount,
		ProgressPercentage:  job.ProgressPercentage(),
		CurrentPhase:        job.CurrentPhase,
		CurrentEmployeeID:   job.CurrentEmployeeID,
		CurrentEmployeeName: job.CurrentEmployeeName,
		CurrentStageID:      job.CurrentStageID,
		CompletedStageIDs:   job.CompletedStageIDs,
		ProcessingStartedAt: job.ProcessingStartedAt,
	}
}

func (r *Runner) persist(ctx context.Context, job *model.Job) error {
	upd := progressUpdateOf(job)
	err := retry.Do(
		func() error { return r.jobs.UpdateProgress(ctx, nil, job.ID, upd) },
		retry.Attempts(3),
		retry.Delay(250*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("persist progress: %w", err)
	}
	job.UpdatedAt = time.Now()
	return nil
}

// persistTransition writes a stage transition atomically: the audit-trail
// record and the progress row commit together, so the trail never shows a
// handoff the checkpoint does not know about (or the reverse).
func (r *Runner) persistTransition(ctx context.Context, job *model.Job, rec *model.HandoffRecord) error {
	upd := progressUpdateOf(job)
	err := retry.Do(
		func() error {
			return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
				if err := r.handoffs.Append(ctx, tx, rec); err != nil {
					return err
				}
				return r.jobs.UpdateProgress(ctx, tx, job.ID, upd)
			})
		},
		retry.Attempts(3),
		retry.Delay(250*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("persist stage transition: %w", err)
	}
	job.UpdatedAt = time.Now()
	return nil
}

// publish emits the stored row's snapshot, not the runner's local copy. A
// command may have landed since that copy was loaded; publishing a stale
// processing status with a fresh timestamp would leave feed-only observers
// (who reconcile by updated_at) stuck on a state the job has already left.
func (r *Runner) publish(ctx context.Context, jobID string) {
	if r.events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	stored, err := r.jobs.FindByID(pubCtx, nil, jobID)
	if err != nil {
		r.log.Warn().Err(err).Str("job_id", jobID).Msg("event snapshot read failed")
		return
	}
	if err := r.events.Publish(pubCtx, model.JobEvent{EventType: model.JobEventUpdate, Snapshot: stored.Snapshot()}); err != nil {
		r.log.Warn().Err(err).Str("job_id", jobID).Msg("event publish failed")
	}
}

func (r *Runner) heartbeatLoop(ctx context.Context, jobID string) {
	if r.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.jobs.Heartbeat(ctx, jobID); err != nil {
				r.log.Warn().Err(err).Str("job_id", jobID).Msg("heartbeat failed")
			}
		}
	}
}
