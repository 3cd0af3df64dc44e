package adapter

import (
	"context"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
)

// StageRequest identifies one unit of stage work: a single stage applied
// to a single employee within a job.
type StageRequest struct {
	JobID          string
	TenantID       string
	EmployeeID     string
	GenerationMode string
	Stage          model.PipelineStage
}

// StageRunner executes the opaque content-generation work of one pipeline
// stage. The call blocks for the stage's full duration and is treated as
// non-interruptible: cancellation is observed between stages, never
// mid-stage. A timeout enforced inside the runner surfaces as an error and
// is handled identically to any other stage failure.
type StageRunner interface {
	RunStage(ctx context.Context, req StageRequest) error
}
