package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/crewhub/internal/auth"
	"github.com/geocoder89/crewhub/internal/cache"
	"github.com/geocoder89/crewhub/internal/cache/redisclient"
	"github.com/geocoder89/crewhub/internal/config"
	"github.com/geocoder89/crewhub/internal/db"
	httpx "github.com/geocoder89/crewhub/internal/http"
	"github.com/geocoder89/crewhub/internal/http/handlers"
	"github.com/geocoder89/crewhub/internal/notifications"
	"github.com/geocoder89/crewhub/internal/observability"
	"github.com/geocoder89/crewhub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "crewhub-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.Env, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	pool, err := db.NewPool(ctx, cfg.DBURL, db.PoolConfig{MaxConns: 10})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	users := postgres.NewUsersRepo(pool, prom)
	resets := postgres.NewPasswordResetsRepo(pool, prom, cfg.ResetTokenTTL)

	err = db.EnsureAdminUser(ctx, users, db.AdminSeed{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	}, log)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	checks := map[string]handlers.Pinger{"postgres": pool}

	var roleStore cache.RoleStore = cache.NewMemoryStore(cfg.RoleCacheTTL)
	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rc.Close()

		pctx, cancel := config.WithTimeout(ctx, 2*time.Second)
		err := rc.Ping(pctx)
		cancel()

		if err != nil {
			log.Warn("redis unreachable, using in-process role cache", "addr", cfg.RedisAddr, "err", err)
		} else {
			roleStore = cache.NewRedisStore(rc.Raw(), cfg.RoleCacheTTL)
			checks["redis"] = rc
		}
	}
	roles := cache.NewRoleChecker(users, roleStore, log)

	codec, err := auth.NewCodec(cfg.CodecConfig())
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log, cfg.IsDev()),
		notifications.ProtectedNotifierConfig{},
	)

	svc := auth.NewService(users, resets, codec, notifier,
		auth.WithLogger(log),
		auth.WithEventRecorder(prom),
		auth.WithRoleInvalidator(roles),
		auth.WithResetURLBase(cfg.ResetURLBase),
	)

	router := httpx.NewRouter(httpx.Deps{
		Log:          log,
		Env:          cfg.Env,
		ServiceName:  serviceName,
		Auth:         svc,
		Tokens:       codec,
		Roles:        roles,
		Prom:         prom,
		Gatherer:     reg,
		Checks:       checks,
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	sctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
