package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/crewhub/internal/config"
	"github.com/geocoder89/crewhub/internal/db"
	"github.com/geocoder89/crewhub/internal/observability"
	"github.com/geocoder89/crewhub/internal/repo/postgres"
	"github.com/geocoder89/crewhub/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env).With("component", "worker")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBURL, db.PoolConfig{MaxConns: 2})
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	prom := observability.NewProm(reg)

	resets := postgres.NewPasswordResetsRepo(pool, prom, cfg.ResetTokenTTL)
	sweeper := worker.NewSweeper(worker.Config{Interval: cfg.CleanupInterval}, resets, prom, nil, log)

	var shuttingDown atomic.Bool

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler:           worker.HealthHandler(sweeper, pool, shuttingDown.Load, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	if err := sweeper.Run(ctx); err != nil {
		log.Error("sweeper stopped with error", "err", err)
	}

	shuttingDown.Store(true)

	sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := healthSrv.Shutdown(sctx); err != nil {
		log.Error("worker health shutdown failed", "err", err)
	}

	log.Info("worker shutdown complete")
}
