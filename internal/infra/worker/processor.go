package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
)

// InsertHints wakes the processor when a new job row lands, so small
// batches start without waiting out a full tick. The periodic tick remains
// the source of truth against missed or duplicated hints.
type InsertHints interface {
	Hints(ctx context.Context) (<-chan struct{}, error)
}

// Processor feeds the worker pool: on every tick (or insert hint) it
// submits a claim-and-run task. A task that finds nothing eligible simply
// returns; saturation drops the submit and the next tick retries.
type Processor struct {
	jobs               repository.JobRepository
	runner             *Runner
	hints              InsertHints
	claimInterval      time.Duration
	maxActivePerTenant int
	log                *zerolog.Logger
}

func NewProcessor(
	jobs repository.JobRepository,
	runner *Runner,
	hints InsertHints,
	claimInterval time.Duration,
	maxActivePerTenant int,
	logger *zerolog.Logger,
) *Processor {
	if claimInterval <= 0 {
		claimInterval = 500 * time.Millisecond
	}
	if maxActivePerTenant <= 0 {
		maxActivePerTenant = 1
	}
	l := logger.With().Str("component", "JobProcessor").Logger()
	return &Processor{
		jobs:               jobs,
		runner:             runner,
		hints:              hints,
		claimInterval:      claimInterval,
		maxActivePerTenant: maxActivePerTenant,
		log:                &l,
	}
}

// Start runs the dispatch loop. This should be run in a goroutine.
func (p *Processor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("job processor started")

	var hintCh <-chan struct{}
	if p.hints != nil {
		ch, err := p.hints.Hints(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("insert hints unavailable, relying on ticks")
		} else {
			hintCh = ch
		}
	}

	ticker := time.NewTicker(p.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		case <-ticker.C:
		case _, ok := <-hintCh:
			if !ok {
				hintCh = nil
				continue
			}
		}
		_ = pool.Submit(func(ctx context.Context) error {
			p.processOne(ctx)
			return nil
		})
	}
}

func (p *Processor) processOne(ctx context.Context) {
	job, err := p.jobs.ClaimNext(ctx, p.maxActivePerTenant)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("claim failed")
		}
		return
	}
	p.log.Info().
		Str("job_id", job.ID).
		Str("tenant_id", job.TenantID).
		Str("priority", string(job.Priority)).
		Int("employees", job.TotalEmployees()).
		Msg("job claimed")
	if err := p.runner.Run(ctx, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("job run ended with fault")
	}
}
