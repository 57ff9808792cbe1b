package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/geocoder89/crewhub/internal/observability"
)

type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

type Config struct {
	Interval   time.Duration
	RunTimeout time.Duration
	// failed runs are retried sooner than Interval, backing off from RetryBase
	RetryBase time.Duration
}

// Sweeper periodically deletes used and expired password reset tokens.
// Running it on several instances at once is harmless.
type Sweeper struct {
	cfg    Config
	tokens TokenCleaner
	prom   *observability.Prom
	stats  *observability.SweepStats
	log    *slog.Logger
	now    func() time.Time

	running atomic.Bool
}

func NewSweeper(cfg Config, tokens TokenCleaner, prom *observability.Prom, stats *observability.SweepStats, log *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 2 * time.Second
	}
	if stats == nil {
		stats = observability.NewSweepStats()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Sweeper{
		cfg:    cfg,
		tokens: tokens,
		prom:   prom,
		stats:  stats,
		log:    log,
		now:    time.Now,
	}
}

func (s *Sweeper) Stats() *observability.SweepStats {
	return s.stats
}

// Running is true between the start of Run and its return.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	start := s.now()
	removed, err := s.tokens.CleanupExpiredTokens(ctx)
	elapsed := s.now().Sub(start)

	s.stats.Observe(start, elapsed, removed, err)
	s.prom.SweepResult(removed, err)

	if err != nil {
		s.log.ErrorContext(ctx, "reset token sweep failed", "err", err, "duration_ms", elapsed.Milliseconds())
		return 0, err
	}

	if removed > 0 {
		s.log.InfoContext(ctx, "reset tokens swept", "removed", removed, "duration_ms", elapsed.Milliseconds())
	}
	return removed, nil
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	s.log.InfoContext(ctx, "reset token sweeper started", "interval", s.cfg.Interval.String())

	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reset token sweeper stopping")
			return nil

		case <-timer.C:
			next := s.cfg.Interval

			if _, err := s.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if retry := ExponentialBackoff(failures, s.cfg.RetryBase, s.cfg.Interval); retry < next {
					next = retry
				}
				failures++
			} else {
				failures = 0
			}

			timer.Reset(next)
		}
	}
}
