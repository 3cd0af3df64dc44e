package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/metrics"
)

// AgingWorker periodically promotes long-queued low-priority jobs to
// medium so a steady stream of small batches cannot starve them forever.
type AgingWorker struct {
	interval     time.Duration
	promoteAfter time.Duration
	jobs         repository.JobRepository
	log          *zerolog.Logger
}

func NewAgingWorker(interval, promoteAfter time.Duration, jobs repository.JobRepository, logger *zerolog.Logger) *AgingWorker {
	l := logger.With().Str("component", "AgingWorker").Logger()
	return &AgingWorker{
		interval:     interval,
		promoteAfter: promoteAfter,
		jobs:         jobs,
		log:          &l,
	}
}

func (w *AgingWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("promote_after", w.promoteAfter).Msg("starting aging worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping aging worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.jobs.PromoteAged(ctx, time.Now().Add(-w.promoteAfter))
			if err != nil {
				w.log.Error().Err(err).Msg("aging promotion error")
				continue
			}
			if n > 0 {
				metrics.AddJobsPromoted(n)
				w.log.Info().Int("count", n).Msg("aged jobs promoted")
			}
		}
	}
}
