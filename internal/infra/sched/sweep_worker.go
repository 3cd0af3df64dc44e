package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/metrics"
)

// StaleReclaimer is the slice of the job repository the sweep needs.
type StaleReclaimer interface {
	ReclaimStale(ctx context.Context, heartbeatOlderThan time.Time) (int, error)
	QueueDepth(ctx context.Context) (queued, active int, err error)
}

// SweepWorker requeues claimed jobs whose worker stopped heartbeating
// (crash, deadlock, lost node). The reclaimed row keeps its checkpoint, so
// the next claim resumes from where the dead worker left off.
type SweepWorker struct {
	interval   time.Duration
	staleAfter time.Duration
	jobs       StaleReclaimer
	log        *zerolog.Logger
}

func NewSweepWorker(interval, staleAfter time.Duration, jobs StaleReclaimer, logger *zerolog.Logger) *SweepWorker {
	l := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval:   interval,
		staleAfter: staleAfter,
		jobs:       jobs,
		log:        &l,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("stale_after", w.staleAfter).Msg("starting sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.jobs.ReclaimStale(ctx, time.Now().Add(-w.staleAfter))
			if err != nil {
				w.log.Error().Err(err).Msg("stale sweep error")
				continue
			}
			if n > 0 {
				metrics.AddJobsReclaimed(n)
				w.log.Warn().Int("count", n).Msg("stale jobs requeued")
			}
			if queued, active, err := w.jobs.QueueDepth(ctx); err == nil {
				metrics.SetQueueDepth(queued, active)
			}
		}
	}
}
