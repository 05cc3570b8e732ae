package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/redact"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/secret"
)

const (
	msgStarted     = "작업 시작..."
	msgDone        = "작업 완료!"
	msgInterrupted = "interrupted"
	msgInternal    = "internal error"
	msgTimeLimit   = "time limit exceeded"

	finalizeTimeout = 5 * time.Second
)

// ProgressFunc reports that current of total steps are done.
type ProgressFunc func(ctx context.Context, current, total int, message string) error

// Runner executes one job with the submitted credentials. Runners must not
// retain creds after returning.
type Runner interface {
	Run(ctx context.Context, creds *secret.Credentials, progress ProgressFunc) ([]Result, error)
}

// Task is the in-memory handoff between dispatcher and worker.
// It is never serialized.
type Task struct {
	JobID       string
	AccountID   string
	Credentials *secret.Credentials
}

type PoolConfig struct {
	Workers   int
	QueueSize int
	TimeLimit time.Duration
}

// Pool runs tasks on a fixed set of worker goroutines.
type Pool struct {
	store  Store
	runner Runner
	cfg    PoolConfig
	tasks  chan Task
	now    func() time.Time

	mu      sync.Mutex
	stopped bool
}

func NewPool(store Store, runner Runner, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = 30 * time.Minute
	}

	return &Pool{
		store:  store,
		runner: runner,
		cfg:    cfg,
		tasks:  make(chan Task, cfg.QueueSize),
		now:    time.Now,
	}
}

// Enqueue hands t to the pool without blocking. It reports false when the
// queue is full or the pool has stopped, in which case the caller still owns
// t.Credentials.
func (p *Pool) Enqueue(t Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	select {
	case p.tasks <- t:
		return true
	default:
		return false
	}
}

// Run starts the workers and blocks until ctx is cancelled. Tasks still
// queued at that point are failed as interrupted.
func (p *Pool) Run(ctx context.Context) error {
	logger.Info("job pool started", map[string]any{
		"workers":    p.cfg.Workers,
		"queue_size": p.cfg.QueueSize,
		"time_limit": p.cfg.TimeLimit.String(),
	})

	g, gctx := errgroup.WithContext(ctx)
	for range p.cfg.Workers {
		g.Go(func() error {
			p.work(gctx)
			return nil
		})
	}
	err := g.Wait()

	// no task can be queued once stopped is set, so drain sees all of them
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.drain()
	logger.Info("job pool stopped", nil)
	return err
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			p.execute(ctx, t)
		}
	}
}

func (p *Pool) drain() {
	for {
		select {
		case t := <-p.tasks:
			t.Credentials.Wipe()
			p.finalize(t.JobID, func(j *Job) error {
				return j.Fail(msgInterrupted, p.now())
			})
		default:
			return
		}
	}
}

func (p *Pool) execute(ctx context.Context, t Task) {
	defer t.Credentials.Wipe()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", map[string]any{
				"job_id": t.JobID,
				"panic":  redact.Text(fmt.Sprint(r)),
			})
			p.finalize(t.JobID, func(j *Job) error {
				return j.Fail(msgInternal, p.now())
			})
		}
	}()

	if ctx.Err() != nil {
		p.finalize(t.JobID, func(j *Job) error {
			return j.Fail(msgInterrupted, p.now())
		})
		return
	}

	if _, err := p.store.Update(ctx, t.JobID, func(j *Job) error {
		if err := j.Start(p.now()); err != nil {
			return err
		}
		j.Message = msgStarted
		return nil
	}); err != nil {
		logger.Error("job start failed", map[string]any{
			"job_id": t.JobID,
			"error":  err,
		})
		// an invalid transition means the job is already terminal
		if !errors.Is(err, ErrInvalidTransition) {
			msg := msgInternal
			if ctx.Err() != nil {
				msg = msgInterrupted
			}
			p.finalize(t.JobID, func(j *Job) error {
				return j.Fail(msg, p.now())
			})
		}
		return
	}

	logger.Info("job started", map[string]any{
		"job_id":     t.JobID,
		"account_id": t.AccountID,
	})

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.TimeLimit)
	defer cancel()

	results, err := p.runner.Run(runCtx, t.Credentials, p.progress(t.JobID))
	if err != nil {
		msg := failureMessage(ctx, err)
		logger.Warn("job failed", map[string]any{
			"job_id":     t.JobID,
			"account_id": t.AccountID,
			"error":      msg,
		})
		p.finalize(t.JobID, func(j *Job) error {
			return j.Fail(msg, p.now())
		})
		return
	}

	p.finalize(t.JobID, func(j *Job) error {
		return j.Succeed(results, msgDone, p.now())
	})
	logger.Info("job completed", map[string]any{
		"job_id":  t.JobID,
		"results": len(results),
	})
}

func (p *Pool) progress(jobID string) ProgressFunc {
	return func(ctx context.Context, current, total int, message string) error {
		_, err := p.store.Update(ctx, jobID, func(j *Job) error {
			return j.Advance(current, total, message)
		})
		return err
	}
}

// finalize writes a terminal state even when the pool context is gone.
func (p *Pool) finalize(jobID string, fn func(j *Job) error) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if _, err := p.store.Update(ctx, jobID, fn); err != nil {
		logger.Error("job finalize failed", map[string]any{
			"job_id": jobID,
			"error":  err,
		})
	}
}

func failureMessage(poolCtx context.Context, err error) string {
	switch {
	case poolCtx.Err() != nil:
		return msgInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeLimit
	default:
		return redact.Text(err.Error())
	}
}
