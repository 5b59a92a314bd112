package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-reconstructor/internal/orchestrator"
	"hls-reconstructor/internal/platform/config"
	"hls-reconstructor/internal/platform/logger"
	"hls-reconstructor/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	storeDriver := config.GetEnv("STORE_DRIVER", "memory")
	storeDSN := config.GetEnv("STORE_DSN", "runs.db")
	acq := config.LoadAcquire()

	log := logger.New(logLevel, logFormat)

	var store orchestrator.Store = orchestrator.NewInMemoryStore()
	if storeDriver == "sqlite" {
		s, err := orchestrator.NewSQLiteStore(storeDSN)
		if err != nil {
			log.Error("open run store", "driver", storeDriver, "error", err)
			os.Exit(1)
		}
		store = s
	}
	defer store.Close()

	met := metrics.New()
	repo := orchestrator.NewRepositoryWithStore(store)
	recovered, err := repo.RecoverInterrupted()
	if err != nil {
		log.Error("recover interrupted runs", "error", err)
		os.Exit(1)
	}
	if recovered > 0 {
		log.Warn("marked interrupted runs as failed", "count", recovered)
	}
	pipeline, err := orchestrator.NewDefaultPipeline(acq, log, met)
	if err != nil {
		log.Error("configure pipeline", "error", err)
		os.Exit(1)
	}
	svc := orchestrator.NewService(repo, pipeline, orchestrator.Defaults{Browser: acq.Browser, OutRoot: acq.OutRoot}, log)
	h := orchestrator.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveRuns(repo.ActiveRunCount()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"store", storeDriver,
		"out_root", acq.OutRoot,
		"fetch_concurrency", acq.FetchConcurrency,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if err := svc.Shutdown(ctx); err != nil {
		log.Error("runs did not finish cleanly", "error", err)
	}

	log.Info("server stopped")
}
