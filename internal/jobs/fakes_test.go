package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/secret"
)

// memStore stores jobs as JSON so tests observe exactly what a real store
// would persist.
type memStore struct {
	mu   sync.Mutex
	docs map[string][]byte

	failCreate error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string][]byte)}
}

func (m *memStore) Create(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	if _, ok := m.docs[j.ID]; ok {
		return fmt.Errorf("duplicate %s", j.ID)
	}
	return m.put(j)
}

func (m *memStore) put(j *Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	m.docs[j.ID] = data
	return nil
}

func (m *memStore) load(id string) (*Job, error) {
	data, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

func (m *memStore) Get(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(id)
}

func (m *memStore) Update(_ context.Context, id string, fn func(j *Job) error) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.load(id)
	if err != nil {
		return nil, err
	}
	if err := fn(j); err != nil {
		return nil, err
	}
	return j, m.put(j)
}

func (m *memStore) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id := range m.docs {
		j, err := m.load(id)
		if err != nil {
			return n, err
		}
		if j.State.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(m.docs, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) raw(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.docs[id])
}

type enqueueFunc func(t Task) bool

func (f enqueueFunc) Enqueue(t Task) bool { return f(t) }

type runnerFunc func(ctx context.Context, creds *secret.Credentials, progress ProgressFunc) ([]Result, error)

func (f runnerFunc) Run(ctx context.Context, creds *secret.Credentials, progress ProgressFunc) ([]Result, error) {
	return f(ctx, creds, progress)
}

// strictStore behaves like a networked store: it honours ctx cancellation
// and can fail the next update.
type strictStore struct {
	*memStore

	mu         sync.Mutex
	failUpdate error
}

func (s *strictStore) Update(ctx context.Context, id string, fn func(j *Job) error) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	err := s.failUpdate
	s.failUpdate = nil
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.memStore.Update(ctx, id, fn)
}
