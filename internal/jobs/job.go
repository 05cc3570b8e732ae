package jobs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("jobs: not found")
	ErrInvalidTransition = errors.New("jobs: invalid state transition")
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Result is one completed automation step.
type Result struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// Job is the persisted record of one background run.
// It has no field for the credentials the run was started with.
type Job struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"account_id"`
	State       State      `json:"state"`
	Current     int        `json:"current"`
	Total       int        `json:"total"`
	Message     string     `json:"message,omitempty"`
	Results     []Result   `json:"results,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func NewJob(id, accountID string, now time.Time) *Job {
	return &Job{
		ID:        id,
		AccountID: accountID,
		State:     StatePending,
		CreatedAt: now,
	}
}

func (j *Job) transition(from []State, to State) error {
	for _, s := range from {
		if j.State == s {
			j.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, to)
}

func (j *Job) Start(now time.Time) error {
	if err := j.transition([]State{StatePending}, StateRunning); err != nil {
		return err
	}
	j.StartedAt = &now
	return nil
}

// Advance records step progress. current may not decrease and may not
// exceed total.
func (j *Job) Advance(current, total int, message string) error {
	if j.State != StateRunning {
		return fmt.Errorf("%w: advance while %s", ErrInvalidTransition, j.State)
	}
	if total <= 0 || current < 0 || current > total {
		return fmt.Errorf("jobs: invalid progress %d/%d", current, total)
	}
	if current < j.Current {
		return fmt.Errorf("%w: progress %d after %d", ErrInvalidTransition, current, j.Current)
	}

	j.Current = current
	j.Total = total
	j.Message = message
	return nil
}

func (j *Job) Succeed(results []Result, message string, now time.Time) error {
	if err := j.transition([]State{StateRunning}, StateSucceeded); err != nil {
		return err
	}
	if j.Total > 0 {
		j.Current = j.Total
	}
	j.Results = results
	j.Message = message
	j.CompletedAt = &now
	return nil
}

// Fail records a sanitized error. Callers redact before calling.
func (j *Job) Fail(errMsg string, now time.Time) error {
	if err := j.transition([]State{StatePending, StateRunning}, StateFailed); err != nil {
		return err
	}
	j.Error = errMsg
	j.Message = ""
	j.CompletedAt = &now
	return nil
}
