package generation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.StageRunner = (*SimulatedRunner)(nil)

// SimulatedRunner implements adapter.StageRunner for local/dev testing.
// It sleeps a short while per stage instead of calling the real
// content-generation service, and can be told to fail specific
// employee/stage pairs.
type SimulatedRunner struct {
	StageDelay time.Duration

	// FailAt maps "<employeeID>/<stageID>" to an error returned for that
	// stage, for exercising failure paths.
	FailAt map[string]error

	log *zerolog.Logger
}

// NewSimulatedRunner constructs the simulated runner.
func NewSimulatedRunner(stageDelay time.Duration, logger *zerolog.Logger) *SimulatedRunner {
	if stageDelay <= 0 {
		stageDelay = 100 * time.Millisecond
	}
	l := logger.With().Str("component", "SimGeneration").Logger()
	return &SimulatedRunner{StageDelay: stageDelay, log: &l}
}

func (r *SimulatedRunner) RunStage(ctx context.Context, req adapter.StageRequest) error {
	select {
	case <-time.After(r.StageDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err, ok := r.FailAt[req.EmployeeID+"/"+req.Stage.ID]; ok {
		return err
	}
	r.log.Debug().
		Str("job_id", req.JobID).
		Str("employee_id", req.EmployeeID).
		Str("stage", req.Stage.ID).
		Msg("simulated stage done")
	return nil
}
