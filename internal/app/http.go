package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	authhandler "github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth/handler"
	jobshandler "github.com/rhenium-075/Kilexep-Prototype-Q1/internal/jobs/handler"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/middleware"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/ratelimit"
)

const healthTimeout = 2 * time.Second

// RateLimits holds per-window request budgets. Zero disables a rule.
type RateLimits struct {
	SignInPerMinute int
	SignupPerMinute int
	JobsPerHour     int
}

type routerDeps struct {
	Auth     *authhandler.Handler
	Jobs     *jobshandler.Handler
	Sessions middleware.Authenticator
	Limiter  ratelimit.Limiter
	Limits   RateLimits
	Origins  []string
	Checks   map[string]func(context.Context) error
}

func newRouter(d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Recovery(),
		middleware.CORS(d.Origins),
	)

	requireAuth := middleware.GinRequireAuth(middleware.NewAuthMiddleware(d.Sessions))

	d.Auth.RegisterRoutes(router, authhandler.Routes{
		RequireAuth: requireAuth,
		SignInLimit: middleware.RateLimit(d.Limiter, middleware.RateRule{
			Name:   "signin",
			Limit:  d.Limits.SignInPerMinute,
			Window: time.Minute,
			Key:    middleware.ByIP,
		}),
		SignupLimit: middleware.RateLimit(d.Limiter, middleware.RateRule{
			Name:   "signup",
			Limit:  d.Limits.SignupPerMinute,
			Window: time.Minute,
			Key:    middleware.ByAccount,
		}),
	})

	d.Jobs.RegisterRoutes(router, jobshandler.Routes{
		RequireAuth: requireAuth,
		SubmitLimit: middleware.RateLimit(d.Limiter, middleware.RateRule{
			Name:   "jobs",
			Limit:  d.Limits.JobsPerHour,
			Window: time.Hour,
			Key:    middleware.ByAccount,
		}),
	})

	router.GET("/healthz", health(d.Checks))

	return router
}

// health runs every probe concurrently and reports 503 if any fails.
func health(checks map[string]func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		failed := make(map[string]string, len(checks))
		results := make(chan [2]string, len(checks))

		var g errgroup.Group
		for name, check := range checks {
			g.Go(func() error {
				if err := check(ctx); err != nil {
					results <- [2]string{name, err.Error()}
				}
				return nil
			})
		}
		_ = g.Wait()
		close(results)

		for r := range results {
			failed[r[0]] = "unavailable"
			logger.Warn("health check failed", map[string]any{
				"check": r[0],
				"error": r[1],
			})
		}

		c.Header("Cache-Control", "no-store")
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
