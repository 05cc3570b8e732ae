package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/account"
	authhandler "github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth/handler"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth/provider"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth/provider/google"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth/resolver"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/automation"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/config"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/jobs"
	jobshandler "github.com/rhenium-075/Kilexep-Prototype-Q1/internal/jobs/handler"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/ratelimit"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/session"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	httpServer *http.Server
	infra      *Infra
	sessions   *session.Manager
	pool       *jobs.Pool
	sweeper    *jobs.Sweeper
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a, err := assemble(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

func assemble(cfg config.Config, infra *Infra) (*App, error) {
	accounts := account.NewPostgresStore(infra.DB)

	sessions, err := session.NewManager(
		session.NewRedisStore(infra.Redis),
		accounts,
		session.ManagerConfig{
			TTL:      cfg.SessionTTL,
			Cookie:   session.CookieOptions{Secure: cfg.IsProduction()},
			CacheTTL: cfg.SessionAccountCacheTTL,
		},
	)
	if err != nil {
		return nil, err
	}

	googleProvider, err := google.New(google.Config{
		ClientID:           cfg.GoogleClientID,
		ClientSecret:       cfg.GoogleClientSecret,
		DefaultRedirectURL: cfg.GoogleDefaultRedirectURL,
		AllowedOrigins:     cfg.FrontendOrigins,
		Timeout:            cfg.GoogleTimeout,
	})
	if err != nil {
		sessions.Close()
		return nil, err
	}

	identityResolver := resolver.NewStoreResolver(
		accounts,
		resolver.WithLinkRequiresVerifiedEmail(cfg.LinkRequiresVerifiedEmail),
	)

	// a job record must outlive both its run and the retention window
	jobStore := jobs.NewRedisStore(infra.Redis, cfg.JobRetention+cfg.JobTimeLimit)
	pool := jobs.NewPool(jobStore, automation.NewBlogRunner(cfg.JobStepDelay, nil), jobs.PoolConfig{
		Workers:   cfg.JobWorkers,
		QueueSize: cfg.JobQueueSize,
		TimeLimit: cfg.JobTimeLimit,
	})

	router := newRouter(routerDeps{
		Auth: authhandler.NewHandler(
			provider.NewRegistry(googleProvider),
			identityResolver,
			sessions,
			accounts,
		),
		Jobs: jobshandler.NewHandler(
			jobs.NewDispatcher(jobStore, pool),
			jobs.NewStatusReader(jobStore),
		),
		Sessions: sessions,
		Limiter:  ratelimit.NewRedisLimiter(infra.Redis),
		Limits: RateLimits{
			SignInPerMinute: cfg.RateLimitSignIn,
			SignupPerMinute: cfg.RateLimitSignup,
			JobsPerHour:     cfg.RateLimitJobs,
		},
		Origins: cfg.FrontendOrigins,
		Checks:  infra.checks(),
	})

	return &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		infra:    infra,
		sessions: sessions,
		pool:     pool,
		sweeper:  jobs.NewSweeper(jobStore, cfg.JobRetention, cfg.JobSweepInterval),
	}, nil
}

// Run serves HTTP and runs the job workers until ctx is cancelled, then
// shuts the server down gracefully. Infrastructure stays open; call Close.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.pool.Run(gctx)
	})
	g.Go(func() error {
		return a.sweeper.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("http server listening", map[string]any{"addr": a.httpServer.Addr})
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down http server", nil)
		return a.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Close() error {
	a.sessions.Close()
	return a.infra.Close()
}
