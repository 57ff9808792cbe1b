package http

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/crewhub/internal/http/handlers"
	"github.com/geocoder89/crewhub/internal/http/middlewares"
	"github.com/geocoder89/crewhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type AuthAPI interface {
	handlers.AuthService
	handlers.UserAdmin
}

type Deps struct {
	Log         *slog.Logger
	Env         string
	ServiceName string

	Auth   AuthAPI
	Tokens middlewares.TokenVerifier
	Roles  middlewares.RoleChecker

	// Prom and Gatherer are optional; /metrics is only mounted with a Gatherer.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Checks       map[string]handlers.Pinger
	CORSOrigins  []string
	MaxBodyBytes int64
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" && d.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.ServiceName == "" {
		d.ServiceName = "crewhub-api"
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(d.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(d.Prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders(d.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))

	health := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens, d.Log)
	authHandler := handlers.NewAuthHandler(d.Auth, d.Log)
	usersHandler := handlers.NewUsersHandler(d.Auth, d.Log)

	api := r.Group("/api")
	api.Use(middlewares.RequireJSON())

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.GET("/reset-password/:token", authHandler.ValidateResetToken)
		authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)
	}

	admin := api.Group("/admin", authMW.RequireAuth(), authMW.RequireAdmin(d.Roles))
	{
		admin.GET("/users", usersHandler.List)
		admin.PATCH("/users/:id/role", usersHandler.UpdateRole)
	}

	r.NoRoute(func(c *gin.Context) {
		handlers.RespondError(c, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	return r
}
