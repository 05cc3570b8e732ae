// Package automation contains the job runners executed by the worker pool.
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/jobs"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/secret"
)

const (
	DefaultSteps     = 2
	DefaultStepDelay = 2 * time.Second
)

var ErrNoCredentials = errors.New("automation: credentials are required")

// Poster publishes one post with the given credentials. The browser-driven
// implementation lives outside this service.
type Poster interface {
	Post(ctx context.Context, creds *secret.Credentials, index int) (title string, err error)
}

// BlogRunner posts Steps entries, reporting progress after each one.
type BlogRunner struct {
	Steps     int
	StepDelay time.Duration
	Poster    Poster

	sleep func(ctx context.Context, d time.Duration) error
}

func NewBlogRunner(stepDelay time.Duration, poster Poster) *BlogRunner {
	return &BlogRunner{
		Steps:     DefaultSteps,
		StepDelay: stepDelay,
		Poster:    poster,
		sleep:     sleepCtx,
	}
}

func (r *BlogRunner) Run(ctx context.Context, creds *secret.Credentials, progress jobs.ProgressFunc) ([]jobs.Result, error) {
	if creds.Empty() {
		return nil, ErrNoCredentials
	}

	steps := r.Steps
	if steps <= 0 {
		steps = DefaultSteps
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	results := make([]jobs.Result, 0, steps)
	for i := 1; i <= steps; i++ {
		if err := progress(ctx, i-1, steps, fmt.Sprintf("%d/%d 번째 글 작성 중...", i, steps)); err != nil {
			return nil, err
		}
		if err := sleep(ctx, r.StepDelay); err != nil {
			return nil, err
		}

		title := fmt.Sprintf("작업 %d", i)
		if r.Poster != nil {
			t, err := r.Poster.Post(ctx, creds, i)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			if t != "" {
				title = t
			}
		}

		results = append(results, jobs.Result{Index: i, Title: title, Status: "success"})
		if err := progress(ctx, i, steps, fmt.Sprintf("%d/%d 완료", i, steps)); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
