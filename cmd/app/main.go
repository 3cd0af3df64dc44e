// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/config"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/adapter"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/adapters/generation"
	pg "github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/db/postgres"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/logging"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/metrics"
	red "github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/redis"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/sched"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/web"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/worker"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (simulated stage runner, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	poolSize := int32(cfg.Database.PoolSize)
	if poolSize <= 0 {
		poolSize = 10
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, poolSize)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	events := red.NewEventStream(redisClient, logger)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	handoffRepo := pg.NewHandoffRepo(pool)
	directoryRepo := pg.NewDirectoryRepo(pool)

	// ---- Use cases ----
	jobUC := usecase.NewJobUseCase(jobRepo, handoffRepo, directoryRepo, events, cfg.Generation.PerEmployeeSeconds, logger)

	// ---- Stage runner (agent service or simulated) ----
	var stages adapter.StageRunner
	if cfg.Generation.ServiceURL != "" {
		stages = generation.NewAgentRunner(cfg.Generation.ServiceURL, cfg.Generation.APIKey)
		logger.Info().Str("service_url", cfg.Generation.ServiceURL).Msg("stage runner: agent service")
	} else {
		if !cfg.Runtime.Dev {
			log.Fatalf("generation.service_url is required outside dev mode")
		}
		stages = generation.NewSimulatedRunner(200*time.Millisecond, logger)
		logger.Warn().Msg("stage runner: simulated (no generation.service_url)")
	}

	// ---- Scheduler ----
	runner := worker.NewRunner(
		jobRepo, handoffRepo, directoryRepo, tm, stages, events,
		cfg.Generation.StageTimeout.Std(), cfg.Scheduler.HeartbeatInterval.Std(), 2*time.Second,
		logger,
	)
	workerPool := worker.NewPool(cfg.Scheduler.Workers, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	processor := worker.NewProcessor(jobRepo, runner, events, cfg.Scheduler.ClaimInterval.Std(), cfg.Scheduler.MaxActivePerTenant, logger)
	go processor.Start(ctx, workerPool)

	aging := sched.NewAgingWorker(cfg.Scheduler.SweepInterval.Std(), cfg.Scheduler.PromoteAfter.Std(), jobRepo, logger)
	go func() { _ = aging.Run(ctx) }()
	sweep := sched.NewSweepWorker(cfg.Scheduler.SweepInterval.Std(), cfg.Scheduler.StaleAfter.Std(), jobRepo, logger)
	go func() { _ = sweep.Run(ctx) }()

	// ---- HTTP API ----
	srv := web.NewServer(jobUC, cfg.Server.APIKey, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
