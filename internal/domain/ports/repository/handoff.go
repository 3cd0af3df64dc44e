package repository

import (
	"context"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
)

// HandoffRepository is the append-only audit trail of stage transitions.
type HandoffRepository interface {
	Append(ctx context.Context, tx Tx, rec *model.HandoffRecord) error
	ListByJob(ctx context.Context, jobID string) ([]*model.HandoffRecord, error)
}
