package jobs

import (
	"context"
	"errors"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

const (
	msgPending      = "작업 대기 중..."
	msgRunning      = "작업 진행 중..."
	msgFailed       = "작업 실패"
	msgUnknownError = "알 수 없는 오류"
)

// StatusView is the client-facing projection of a Job.
type StatusView struct {
	JobID    string   `json:"jobId"`
	Status   string   `json:"status"`
	Progress int      `json:"progress"`
	Current  *int     `json:"current,omitempty"`
	Total    *int     `json:"total,omitempty"`
	Message  string   `json:"message"`
	Results  []Result `json:"results,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type StatusReader struct {
	store Store
}

func NewStatusReader(store Store) *StatusReader {
	return &StatusReader{store: store}
}

// Status returns the view of jobID if accountID owns it.
func (r *StatusReader) Status(ctx context.Context, jobID, accountID string) (StatusView, error) {
	j, err := r.store.Get(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		return StatusView{}, apperr.NotFound("job not found").WithCode("job_not_found")
	}
	if err != nil {
		return StatusView{}, apperr.Internal("load job", err)
	}
	if j.AccountID != accountID {
		return StatusView{}, apperr.Forbidden("job belongs to another account")
	}
	return View(j), nil
}

// View maps the stored state onto the four client statuses.
func View(j *Job) StatusView {
	v := StatusView{JobID: j.ID, Message: j.Message}

	switch j.State {
	case StatePending:
		v.Status = StatusPending
		v.Message = orDefault(j.Message, msgPending)

	case StateRunning:
		v.Status = StatusRunning
		v.Message = orDefault(j.Message, msgRunning)
		v.Progress = percent(j.Current, j.Total)
		v.Current, v.Total = counters(j)

	case StateSucceeded:
		v.Status = StatusCompleted
		v.Progress = 100
		v.Current, v.Total = counters(j)
		v.Results = j.Results

	case StateFailed:
		v.Status = StatusError
		v.Message = orDefault(j.Message, msgFailed)
		v.Error = orDefault(j.Error, msgUnknownError)
	}
	return v
}

func percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return current * 100 / total
}

func counters(j *Job) (*int, *int) {
	if j.Total <= 0 {
		return nil, nil
	}
	current, total := j.Current, j.Total
	return &current, &total
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
