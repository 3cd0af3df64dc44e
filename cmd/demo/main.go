// An offline walkthrough of the orchestrator: in-memory store, simulated
// stage runner, real claim/run/pause/resume machinery.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/adapters/generation"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/worker"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	store := newMemoryStore()
	store.addTenant("acme", map[string]string{
		"emp-1": "Ada Lovelace",
		"emp-2": "Grace Hopper",
		"emp-3": "Alan Turing",
		"emp-4": "Edsger Dijkstra",
	})
	events := stdoutPublisher{}

	jobUC := usecase.NewJobUseCase(store, store, store, events, 1, &logger)

	stages := generation.NewSimulatedRunner(50*time.Millisecond, &logger)
	runner := worker.NewRunner(store, store, store, store, stages, events,
		5*time.Second, time.Second, 200*time.Millisecond, &logger)
	pool := worker.NewPool(2, &logger)
	pool.Start(ctx)
	defer pool.Stop()
	processor := worker.NewProcessor(store, runner, store, 100*time.Millisecond, 1, &logger)
	go processor.Start(ctx, pool)

	// A small batch runs straight through.
	job, err := jobUC.Create(ctx, "acme", []string{"emp-1", "emp-2"}, "first_time")
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	fmt.Printf("created job %s priority=%s estimate=%ds\n", job.ID, job.Priority, job.EstimatedDurationSeconds)
	waitTerminal(ctx, jobUC, job.ID)

	// Pause mid-flight, then resume: no stage runs twice.
	job2, err := jobUC.Create(ctx, "acme", []string{"emp-3", "emp-4"}, "regenerate")
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	outcome, _ := jobUC.Pause(ctx, job2.ID)
	fmt.Printf("pause -> %s\n", outcome)
	time.Sleep(500 * time.Millisecond)
	outcome, _ = jobUC.Resume(ctx, job2.ID)
	fmt.Printf("resume -> %s\n", outcome)
	waitTerminal(ctx, jobUC, job2.ID)

	for _, id := range []string{job.ID, job2.ID} {
		snap, _ := jobUC.Get(ctx, id)
		recs, _ := jobUC.Handoffs(ctx, id)
		fmt.Printf("job %s: status=%s successful=%d failed=%d handoffs=%d\n",
			id, snap.Status, snap.SuccessfulCount, snap.FailedCount, len(recs))
	}
}

func waitTerminal(ctx context.Context, uc *usecase.JobUseCase, jobID string) {
	for {
		snap, err := uc.Get(ctx, jobID)
		if err != nil {
			log.Fatalf("get: %v", err)
		}
		if snap.Status == "completed" || snap.Status == "failed" {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}
