package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/geocoder89/crewhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyz(t *testing.T) {
	up := pingFunc(func(ctx context.Context) error { return nil })
	down := pingFunc(func(ctx context.Context) error { return errors.New("refused") })

	tests := []struct {
		name     string
		checks   map[string]handlers.Pinger
		wantCode int
	}{
		{name: "all up", checks: map[string]handlers.Pinger{"postgres": up, "redis": up}, wantCode: http.StatusOK},
		{name: "redis down", checks: map[string]handlers.Pinger{"postgres": up, "redis": down}, wantCode: http.StatusServiceUnavailable},
		{name: "nothing configured", checks: map[string]handlers.Pinger{"redis": nil}, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewHealthHandler(tt.checks)
			r := gin.New()
			r.GET("/readyz", h.Readyz)

			w := doJSON(r, http.MethodGet, "/readyz", "")
			if w.Code != tt.wantCode {
				t.Fatalf("status got %d, want %d body=%s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}
