package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ReadinessDeps interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness, readiness (with sweep stats) and metrics for
// the worker process. gatherer may be nil.
func HealthHandler(s *Sweeper, deps ReadinessDeps, isShuttingDown func() bool, gatherer prometheus.Gatherer) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		stats := s.Stats().Snapshot()

		if isShuttingDown() || !s.Running() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "sweeper": stats})
			return
		}

		if deps != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
			defer cancel()

			if err := deps.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "sweeper": stats})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready", "sweeper": stats})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
