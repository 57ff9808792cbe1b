package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/geocoder89/crewhub/internal/auth"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be provided")

type Config struct {
	Env  string `envconfig:"APP_ENV" default:"dev"`
	Port int    `envconfig:"PORT" default:"8080"`

	DBURL      string `envconfig:"DATABASE_URL"`
	DBHost     string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"crewhub"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"crewhub"`
	DBName     string `envconfig:"DB_NAME" default:"crewhub"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	JWTSecret    string        `envconfig:"JWT_SECRET"`
	JWTExpiresIn time.Duration `envconfig:"JWT_EXPIRES_IN" default:"24h"`

	ResetTokenTTL time.Duration `envconfig:"RESET_TOKEN_TTL" default:"1h"`
	ResetURLBase  string        `envconfig:"RESET_URL_BASE" default:"http://localhost:3000/reset-password"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RoleCacheTTL  time.Duration `envconfig:"ROLE_CACHE_TTL" default:"30s"`

	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"15m"`
	WorkerPort      int           `envconfig:"WORKER_PORT" default:"8081"`

	OTelEndpoint string   `envconfig:"OTEL_ENDPOINT"`
	CORSOrigins  []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxBodyBytes int64    `envconfig:"MAX_BODY_BYTES" default:"1048576"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AdminName     string `envconfig:"ADMIN_NAME" default:"Administrator"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return Config{}, ErrMissingJWTSecret
	}

	if cfg.DBURL == "" {
		cfg.DBURL = cfg.buildDBURL()
	}

	return cfg, nil
}

func (c Config) buildDBURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}

	return u.String()
}

// CodecConfig is the immutable signing configuration handed to the token codec.
func (c Config) CodecConfig() auth.CodecConfig {
	return auth.CodecConfig{
		Secret:    c.JWTSecret,
		ExpiresIn: c.JWTExpiresIn,
	}
}

// IsDev gates anything that may print secrets, such as reset links, to the log.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// WithTimeout bounds a store call made on behalf of a request.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}
