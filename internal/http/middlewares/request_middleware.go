package middlewares

import (
	"log/slog"
	"time"

	"github.com/geocoder89/crewhub/internal/actorctx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-Id"
	CtxRequestID    = "request_id"
)

// maxRequestIDLen bounds client supplied ids before they reach the logs.
const maxRequestIDLen = 128

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		c.Writer.Header().Set(RequestIDHeader, id)
		c.Set(CtxRequestID, id)
		c.Request = c.Request.WithContext(actorctx.WithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		}

		if claim, ok := ClaimFromContext(c); ok {
			attrs = append(attrs, "user_id", claim.UserID)
		}

		// request_id is added by the trace handler from the request context
		log.InfoContext(c.Request.Context(), "http_request", attrs...)
	}
}
