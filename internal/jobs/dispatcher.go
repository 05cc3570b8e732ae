package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/secret"
)

var tracer = otel.Tracer("github.com/rhenium-075/Kilexep-Prototype-Q1/internal/jobs")

// Enqueuer accepts tasks without blocking.
type Enqueuer interface {
	Enqueue(t Task) bool
}

// Dispatcher records new jobs and hands them to the execution pool.
type Dispatcher struct {
	store Store
	queue Enqueuer
	newID func() string
	now   func() time.Time
}

func NewDispatcher(store Store, queue Enqueuer) *Dispatcher {
	return &Dispatcher{
		store: store,
		queue: queue,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Submit creates a pending job for accountID and enqueues it. creds is wiped
// before Submit returns on every path; the worker receives its own copy.
func (d *Dispatcher) Submit(ctx context.Context, accountID string, creds *secret.Credentials) (string, error) {
	defer creds.Wipe()

	ctx, span := tracer.Start(ctx, "jobs.Submit")
	defer span.End()

	if accountID == "" {
		return "", apperr.AuthRequired("no account")
	}
	if creds.Empty() {
		return "", apperr.Validation("naver_id and naver_pw are required").
			WithCode("missing_credentials")
	}

	job := NewJob(d.newID(), accountID, d.now())
	span.SetAttributes(attribute.String("job.id", job.ID))

	if err := d.store.Create(ctx, job); err != nil {
		span.SetStatus(codes.Error, "create failed")
		return "", apperr.Internal("create job", err)
	}

	handoff := creds.Clone()
	if !d.queue.Enqueue(Task{JobID: job.ID, AccountID: accountID, Credentials: handoff}) {
		handoff.Wipe()
		span.SetStatus(codes.Error, "queue full")

		if _, err := d.store.Update(ctx, job.ID, func(j *Job) error {
			return j.Fail("queue full", d.now())
		}); err != nil {
			logger.Error("job fail after full queue", map[string]any{
				"job_id": job.ID,
				"error":  err,
			})
		}
		return "", apperr.Internal("job queue full", nil).WithCode("queue_full")
	}

	logger.Info("job dispatched", map[string]any{
		"job_id":              job.ID,
		"account_id":          accountID,
		"credentials_present": true,
	})

	return job.ID, nil
}
