package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
)

var _ repository.HandoffRepository = (*handoffRepo)(nil)

type handoffRepo struct {
	pool *pgxpool.Pool
}

func NewHandoffRepo(pool *pgxpool.Pool) *handoffRepo {
	return &handoffRepo{pool: pool}
}

func (r *handoffRepo) Append(ctx context.Context, tx repository.Tx, rec *model.HandoffRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	const q = `
INSERT INTO stage_handoffs (id, job_id, employee_id, from_stage, to_stage, outcome, error_message, ts)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.JobID, rec.EmployeeID, rec.FromStage, rec.ToStage, string(rec.Outcome), rec.Error, rec.Timestamp)
	return err
}

func (r *handoffRepo) ListByJob(ctx context.Context, jobID string) ([]*model.HandoffRecord, error) {
	const q = `
SELECT id, job_id, employee_id, from_stage, to_stage, outcome, error_message, ts
  FROM stage_handoffs
 WHERE job_id = $1
 ORDER BY ts ASC, id ASC;`

	rows, err := pickRows(ctx, r.pool, nil, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.HandoffRecord
	for rows.Next() {
		var rec model.HandoffRecord
		var outcome string
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.EmployeeID, &rec.FromStage, &rec.ToStage, &outcome, &rec.Error, &rec.Timestamp); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		rec.Outcome = model.EmployeeStatus(outcome)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
