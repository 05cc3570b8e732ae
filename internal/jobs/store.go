package jobs

import (
	"context"
	"time"
)

// Store persists job records. Update applies fn atomically against the
// latest stored version; fn errors abort the write.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, id string, fn func(j *Job) error) (*Job, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
