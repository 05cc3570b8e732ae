package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8080"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`

	GoogleClientID           string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret       string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleDefaultRedirectURL string        `env:"GOOGLE_DEFAULT_REDIRECT_URL" envDefault:"http://localhost:3000/login"`
	GoogleTimeout            time.Duration `env:"GOOGLE_TIMEOUT" envDefault:"6s"`
	FrontendOrigins          []string      `env:"FRONTEND_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	// SessionAccountCacheTTL bounds how stale a cached account read may be.
	SessionAccountCacheTTL time.Duration `env:"SESSION_ACCOUNT_CACHE_TTL" envDefault:"30s"`

	// LinkRequiresVerifiedEmail gates linking a new provider identity to an
	// existing account found by normalized email. false links on email match
	// alone; the default is true.
	LinkRequiresVerifiedEmail bool `env:"RESOLVER_LINK_REQUIRES_VERIFIED_EMAIL" envDefault:"true"`

	JobWorkers       int           `env:"JOBS_WORKERS" envDefault:"2"`
	JobQueueSize     int           `env:"JOBS_QUEUE_SIZE" envDefault:"64"`
	JobTimeLimit     time.Duration `env:"JOBS_TIME_LIMIT" envDefault:"30m"`
	JobRetention     time.Duration `env:"JOBS_RETENTION" envDefault:"168h"`
	JobSweepInterval time.Duration `env:"JOBS_SWEEP_INTERVAL" envDefault:"1h"`
	JobStepDelay     time.Duration `env:"JOBS_STEP_DELAY" envDefault:"2s"`

	RateLimitSignIn int `env:"RATE_LIMIT_SIGNIN" envDefault:"10"`
	RateLimitSignup int `env:"RATE_LIMIT_SIGNUP" envDefault:"5"`
	RateLimitJobs   int `env:"RATE_LIMIT_JOBS" envDefault:"3"`

	OtelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	OtelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	cfg.FrontendOrigins = normalizeOrigins(cfg.FrontendOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c Config) Validate() error {
	var errs []error

	if c.GoogleClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is required"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if c.GoogleTimeout <= 0 {
		errs = append(errs, errors.New("GOOGLE_TIMEOUT must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.JobWorkers < 1 {
		errs = append(errs, errors.New("JOBS_WORKERS must be at least 1"))
	}
	if c.JobQueueSize < 1 {
		errs = append(errs, errors.New("JOBS_QUEUE_SIZE must be at least 1"))
	}
	if c.JobRetention <= 0 || c.JobSweepInterval <= 0 || c.JobTimeLimit <= 0 {
		errs = append(errs, errors.New("job durations must be positive"))
	}
	if _, err := url.Parse(c.GoogleDefaultRedirectURL); err != nil {
		errs = append(errs, fmt.Errorf("GOOGLE_DEFAULT_REDIRECT_URL: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
