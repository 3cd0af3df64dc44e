package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `
id, tenant_id, status, generation_mode, employee_ids,
successful_count, failed_count, progress_percentage,
current_phase, current_employee_id, current_employee_name,
current_stage_id, completed_stage_ids,
priority, estimated_duration_s, error_message,
created_at, queued_at, processing_started_at, updated_at, heartbeat_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status, priority string
	var processingStartedAt *time.Time
	err := row.Scan(
		&j.ID, &j.TenantID, &status, &j.GenerationMode, &j.EmployeeIDs,
		&j.SuccessfulCount, &j.FailedCount, new(int), // derived in Go, column kept for observers querying SQL directly
		&j.CurrentPhase, &j.CurrentEmployeeID, &j.CurrentEmployeeName,
		&j.CurrentStageID, &j.CompletedStageIDs,
		&priority, &j.EstimatedDurationSeconds, &j.ErrorMessage,
		&j.CreatedAt, &j.QueuedAt, &processingStartedAt, &j.UpdatedAt, &j.HeartbeatAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(status)
	j.Priority = model.JobPriority(priority)
	if processingStartedAt != nil {
		j.ProcessingStartedAt = *processingStartedAt
	}
	return &j, nil
}

func (r *jobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
INSERT INTO generation_jobs
  (id, tenant_id, status, generation_mode, employee_ids,
   priority, priority_rank, estimated_duration_s, current_phase,
   created_at, queued_at, updated_at, heartbeat_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.TenantID, string(job.Status), job.GenerationMode, job.EmployeeIDs,
		string(job.Priority), job.Priority.Rank(), job.EstimatedDurationSeconds, job.CurrentPhase,
		job.CreatedAt, job.QueuedAt, job.UpdatedAt, job.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, jobID string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = $1;`, jobID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) ListByTenant(ctx context.Context, tenantID string, statusIn []model.JobStatus, limit int) ([]*model.Job, error) {
	statuses := make([]string, 0, len(statusIn))
	for _, s := range statusIn {
		statuses = append(statuses, string(s))
	}
	q := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if len(statuses) > 0 {
		q += ` AND status = ANY($2) ORDER BY created_at DESC LIMIT $3;`
		args = append(args, statuses, limit)
	} else {
		q += ` ORDER BY created_at DESC LIMIT $2;`
		args = append(args, limit)
	}
	rows, err := pickRows(ctx, r.pool, nil, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// claimLockID keys the advisory lock that serializes claim transactions.
const claimLockID int64 = 0x636C61696D

// ClaimNext picks the next eligible queued job and marks it pending.
// Tenants at the single-flight limit are skipped; among the rest priority
// wins, arrival order breaks ties. The per-tenant active count is a plain
// subquery, so under READ COMMITTED two overlapping claims would each see
// the other's row still queued and both admit the same tenant; an advisory
// lock held for the transaction makes claims strictly sequential.
func (r *jobRepo) ClaimNext(ctx context.Context, maxActivePerTenant int) (*model.Job, error) {
	const q = `
WITH eligible AS (
  SELECT j.id FROM generation_jobs j
  WHERE j.status = 'queued'
    AND (SELECT count(*) FROM generation_jobs a
          WHERE a.tenant_id = j.tenant_id
            AND a.status IN ('pending','processing','paused')) < $1
  ORDER BY j.priority_rank DESC, j.created_at ASC
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
UPDATE generation_jobs g
   SET status = 'pending', updated_at = now(), heartbeat_at = now()
  FROM eligible e
 WHERE g.id = e.id
RETURNING ` + jobColumns + `;`

	var job *model.Job
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1);`, claimLockID); err != nil {
			return err
		}
		row, err := pickRow(ctx, r.pool, tx, q, maxActivePerTenant)
		if err != nil {
			return err
		}
		job, err = scanJob(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatusPending
	return job, nil
}

func (r *jobRepo) UpdateProgress(ctx context.Context, tx repository.Tx, jobID string, upd repository.ProgressUpdate) error {
	var started *time.Time
	if !upd.ProcessingStartedAt.IsZero() {
		started = &upd.ProcessingStartedAt
	}
	// The worker owns current_phase only while it owns the job. Once a
	// command moved the row to a terminal or paused status, that status's
	// phase label stands; a late worker write must not revive 'processing'.
	const q = `
UPDATE generation_jobs SET
  successful_count      = $2,
  failed_count          = $3,
  progress_percentage   = $4,
  current_phase         = CASE WHEN status IN ('pending','processing') THEN $5 ELSE current_phase END,
  current_employee_id   = $6,
  current_employee_name = $7,
  current_stage_id      = $8,
  completed_stage_ids   = $9,
  processing_started_at = COALESCE(processing_started_at, $10),
  updated_at            = now(),
  heartbeat_at          = now()
WHERE id = $1;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		jobID, upd.SuccessfulCount, upd.FailedCount, upd.ProgressPercentage,
		upd.CurrentPhase, upd.CurrentEmployeeID, upd.CurrentEmployeeName,
		upd.CurrentStageID, upd.CompletedStageIDs, started)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) CompareAndSetStatus(ctx context.Context, tx repository.Tx, jobID string, from []model.JobStatus, to model.JobStatus, errorMessage string) (bool, error) {
	fromStr := make([]string, 0, len(from))
	for _, s := range from {
		fromStr = append(fromStr, string(s))
	}
	const q = `
UPDATE generation_jobs SET
  status        = $2,
  error_message = CASE WHEN $3 <> '' THEN $3 ELSE error_message END,
  current_phase = CASE WHEN $4 <> '' THEN $4 ELSE current_phase END,
  updated_at    = now()
WHERE id = $1 AND status = ANY($5);`

	tag, err := execSQL(ctx, r.pool, tx, q, jobID, string(to), errorMessage, phaseFor(to), fromStr)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost CAS from a missing row.
		if _, err := r.Status(ctx, jobID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// phaseFor maps a commanded status to the phase label observers render.
// Processing is left empty: the worker owns that label and rewrites it at
// the next checkpoint.
func phaseFor(to model.JobStatus) string {
	switch to {
	case model.JobStatusPaused:
		return model.PhasePaused
	case model.JobStatusCompleted:
		return model.PhaseCompleted
	case model.JobStatusFailed:
		return model.PhaseFailed
	case model.JobStatusQueued:
		return model.PhaseQueued
	default:
		return ""
	}
}

func (r *jobRepo) Status(ctx context.Context, jobID string) (model.JobStatus, error) {
	row, err := pickRow(ctx, r.pool, nil, `SELECT status FROM generation_jobs WHERE id = $1;`, jobID)
	if err != nil {
		return "", err
	}
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", domain.ErrReadDatabaseRow
	}
	return model.JobStatus(status), nil
}

func (r *jobRepo) Heartbeat(ctx context.Context, jobID string) error {
	_, err := execSQL(ctx, r.pool, nil,
		`UPDATE generation_jobs SET heartbeat_at = now() WHERE id = $1;`, jobID)
	return err
}

func (r *jobRepo) PromoteAged(ctx context.Context, olderThan time.Time) (int, error) {
	const q = `
UPDATE generation_jobs SET
  priority      = 'medium',
  priority_rank = $1,
  updated_at    = now()
WHERE status = 'queued' AND priority = 'low' AND created_at < $2;`

	tag, err := execSQL(ctx, r.pool, nil, q, model.PriorityMedium.Rank(), olderThan)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ReclaimStale requeues claimed jobs whose worker stopped heartbeating.
// Paused jobs are deliberately excluded: paused is a stable state with no
// work owed, and requeuing one would resume it against the user's intent.
// A resumed job whose worker is gone shows up here as stale 'processing'.
func (r *jobRepo) ReclaimStale(ctx context.Context, heartbeatOlderThan time.Time) (int, error) {
	const q = `
UPDATE generation_jobs SET
  status        = 'queued',
  current_phase = $1,
  updated_at    = now()
WHERE status IN ('pending','processing') AND heartbeat_at < $2;`

	tag, err := execSQL(ctx, r.pool, nil, q, model.PhaseQueued, heartbeatOlderThan)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// QueueDepth reports queued and active row counts for the scheduler gauges.
func (r *jobRepo) QueueDepth(ctx context.Context) (queued, active int, err error) {
	row, err := pickRow(ctx, r.pool, nil, `
SELECT
  count(*) FILTER (WHERE status = 'queued'),
  count(*) FILTER (WHERE status IN ('pending','processing','paused'))
FROM generation_jobs;`)
	if err != nil {
		return 0, 0, err
	}
	if err := row.Scan(&queued, &active); err != nil {
		return 0, 0, domain.ErrReadDatabaseRow
	}
	return queued, active, nil
}
