package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/redact"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/secret"
)

const waitFor = 2 * time.Second

// startPool runs p until the test ends.
func startPool(t *testing.T, p *Pool) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func waitState(t *testing.T, store Store, id string, want State) *Job {
	t.Helper()
	var j *Job
	require.Eventually(t, func() bool {
		var err error
		j, err = store.Get(context.Background(), id)
		return err == nil && j.State == want
	}, waitFor, 5*time.Millisecond)
	return j
}

func TestPool_ProgressThenCompletion(t *testing.T) {
	store := newMemStore()
	reader := NewStatusReader(store)

	reached := make(chan struct{})
	proceed := make(chan struct{})
	var seen *secret.Credentials
	var mu sync.Mutex

	runner := runnerFunc(func(ctx context.Context, creds *secret.Credentials, progress ProgressFunc) ([]Result, error) {
		mu.Lock()
		seen = creds
		mu.Unlock()

		var results []Result
		if err := progress(ctx, 1, 2, "1/2"); err != nil {
			return nil, err
		}
		results = append(results, Result{Index: 1, Title: "작업 1", Status: "success"})
		close(reached)
		<-proceed

		if err := progress(ctx, 2, 2, "2/2"); err != nil {
			return nil, err
		}
		results = append(results, Result{Index: 2, Title: "작업 2", Status: "success"})
		return results, nil
	})

	pool := NewPool(store, runner, PoolConfig{Workers: 2, QueueSize: 4, TimeLimit: time.Minute})
	startPool(t, pool)
	d := NewDispatcher(store, pool)

	id, err := d.Submit(context.Background(), "acc-1", secret.New("naver-user", "hunter2"))
	require.NoError(t, err)

	select {
	case <-reached:
	case <-time.After(waitFor):
		t.Fatal("runner did not report progress")
	}

	view, err := reader.Status(context.Background(), id, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, view.Status)
	assert.Equal(t, 50, view.Progress)
	require.NotNil(t, view.Current)
	require.NotNil(t, view.Total)
	assert.Equal(t, 1, *view.Current)
	assert.Equal(t, 2, *view.Total)

	close(proceed)
	waitState(t, store, id, StateSucceeded)

	view, err = reader.Status(context.Background(), id, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, view.Status)
	assert.Equal(t, 100, view.Progress)
	assert.Len(t, view.Results, 2)
	assert.Equal(t, msgDone, view.Message)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen.Empty()
	}, waitFor, 5*time.Millisecond, "worker must wipe its credentials")
	assert.NotContains(t, store.raw(id), "hunter2")
}

func TestPool_RunnerErrorIsRedacted(t *testing.T) {
	store := newMemStore()
	runner := runnerFunc(func(context.Context, *secret.Credentials, ProgressFunc) ([]Result, error) {
		return nil, errors.New("login rejected: password=hunter2")
	})
	pool := NewPool(store, runner, PoolConfig{Workers: 1, TimeLimit: time.Minute})
	startPool(t, pool)

	id, err := NewDispatcher(store, pool).Submit(context.Background(), "acc-1", secret.New("u", "hunter2"))
	require.NoError(t, err)

	j := waitState(t, store, id, StateFailed)
	assert.Equal(t, "login rejected: password="+redact.Mask, j.Error)
	assert.NotContains(t, store.raw(id), "hunter2")

	view := View(j)
	assert.Equal(t, StatusError, view.Status)
	assert.Equal(t, msgFailed, view.Message)
}

func TestPool_PanicFailsJob(t *testing.T) {
	store := newMemStore()
	var seen *secret.Credentials
	var mu sync.Mutex
	runner := runnerFunc(func(_ context.Context, creds *secret.Credentials, _ ProgressFunc) ([]Result, error) {
		mu.Lock()
		seen = creds
		mu.Unlock()
		panic("boom")
	})
	pool := NewPool(store, runner, PoolConfig{Workers: 1, TimeLimit: time.Minute})
	startPool(t, pool)

	id, err := NewDispatcher(store, pool).Submit(context.Background(), "acc-1", secret.New("u", "p"))
	require.NoError(t, err)

	j := waitState(t, store, id, StateFailed)
	assert.Equal(t, "internal error", j.Error)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen.Empty())
}

func TestPool_TimeLimit(t *testing.T) {
	store := newMemStore()
	runner := runnerFunc(func(ctx context.Context, _ *secret.Credentials, _ ProgressFunc) ([]Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	pool := NewPool(store, runner, PoolConfig{Workers: 1, TimeLimit: 20 * time.Millisecond})
	startPool(t, pool)

	id, err := NewDispatcher(store, pool).Submit(context.Background(), "acc-1", secret.New("u", "p"))
	require.NoError(t, err)

	j := waitState(t, store, id, StateFailed)
	assert.Equal(t, msgTimeLimit, j.Error)
}

func TestPool_ShutdownInterruptsRunningJob(t *testing.T) {
	store := newMemStore()
	started := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, _ *secret.Credentials, _ ProgressFunc) ([]Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	pool := NewPool(store, runner, PoolConfig{Workers: 1, TimeLimit: time.Minute})
	cancel := startPool(t, pool)

	id, err := NewDispatcher(store, pool).Submit(context.Background(), "acc-1", secret.New("u", "p"))
	require.NoError(t, err)

	<-started
	cancel()

	j := waitState(t, store, id, StateFailed)
	assert.Equal(t, msgInterrupted, j.Error)
}

func TestPool_QueuedTasksFailOnShutdown(t *testing.T) {
	store := newMemStore()
	runner := runnerFunc(func(ctx context.Context, _ *secret.Credentials, _ ProgressFunc) ([]Result, error) {
		return nil, ctx.Err()
	})
	pool := NewPool(store, runner, PoolConfig{Workers: 1, QueueSize: 4, TimeLimit: time.Minute})

	d := NewDispatcher(store, pool)
	var ids []string
	for range 3 {
		id, err := d.Submit(context.Background(), "acc-1", secret.New("u", "p"))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, pool.Run(ctx))

	for _, id := range ids {
		j, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, StateFailed, j.State)
		assert.Equal(t, msgInterrupted, j.Error)
	}
}

func TestPool_EnqueueFull(t *testing.T) {
	pool := NewPool(newMemStore(), nil, PoolConfig{Workers: 1, QueueSize: 1})
	assert.True(t, pool.Enqueue(Task{JobID: "a"}))
	assert.False(t, pool.Enqueue(Task{JobID: "b"}))
}

func TestPool_SubmitAfterStopFailsJob(t *testing.T) {
	store := newMemStore()
	pool := NewPool(store, runnerFunc(func(context.Context, *secret.Credentials, ProgressFunc) ([]Result, error) {
		t.Fatal("runner must not be called")
		return nil, nil
	}), PoolConfig{Workers: 1, QueueSize: 4, TimeLimit: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, pool.Run(ctx))

	d := NewDispatcher(store, pool)
	d.newID = func() string { return "job-late" }

	_, err := d.Submit(context.Background(), "acc-1", secret.New("u", "p"))
	require.Error(t, err)

	j, err := store.Get(context.Background(), "job-late")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, j.State)

	creds := secret.New("u", "p")
	assert.False(t, pool.Enqueue(Task{JobID: "x", Credentials: creds}))
	assert.False(t, creds.Empty(), "rejected task stays with the caller")
}

func TestPool_StartFailureFailsJob(t *testing.T) {
	tests := []struct {
		name    string
		cancel  bool
		failErr error
		wantErr string
	}{
		{name: "cancelled before start", cancel: true, wantErr: msgInterrupted},
		{name: "store error on start", failErr: errors.New("connection reset"), wantErr: msgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &strictStore{memStore: newMemStore(), failUpdate: tt.failErr}
			pool := NewPool(store, runnerFunc(func(context.Context, *secret.Credentials, ProgressFunc) ([]Result, error) {
				t.Fatal("runner must not be called")
				return nil, nil
			}), PoolConfig{Workers: 1, TimeLimit: time.Minute})

			job := NewJob("job-1", "acc-1", time.Now())
			require.NoError(t, store.Create(context.Background(), job))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			creds := secret.New("u", "p")
			pool.execute(ctx, Task{JobID: job.ID, AccountID: "acc-1", Credentials: creds})

			j, err := store.Get(context.Background(), job.ID)
			require.NoError(t, err)
			assert.Equal(t, StateFailed, j.State)
			assert.Equal(t, tt.wantErr, j.Error)
			assert.NotNil(t, j.CompletedAt)
			assert.True(t, creds.Empty())
		})
	}
}

func TestPool_StartOnTerminalJobLeavesIt(t *testing.T) {
	store := newMemStore()
	pool := NewPool(store, nil, PoolConfig{Workers: 1})

	job := NewJob("job-1", "acc-1", time.Now())
	require.NoError(t, job.Fail("queue full", time.Now()))
	require.NoError(t, store.Create(context.Background(), job))

	pool.execute(context.Background(), Task{JobID: job.ID, Credentials: secret.New("u", "p")})

	j, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, j.State)
	assert.Equal(t, "queue full", j.Error)
}
