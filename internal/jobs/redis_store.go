package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobPrefix    = "job:"
	completedKey = "jobs:completed"

	maxUpdateAttempts = 10
	sweepBatch        = 100
)

// RedisStore keeps each job as a JSON document under job:<id>. Terminal jobs
// are indexed in a sorted set scored by completion time.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a store whose keys expire after ttl regardless of
// state, so jobs abandoned mid-run do not live forever.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return jobPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, j *Job) error {
	if j.ID == "" || j.AccountID == "" {
		return errors.New("jobs: missing id or account_id")
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("jobs: marshal: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(j.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("jobs: create: %w", err)
	}
	if !ok {
		return fmt.Errorf("jobs: %s already exists", j.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	return s.get(ctx, s.client, id)
}

func (s *RedisStore) get(ctx context.Context, c redis.Cmdable, id string) (*Job, error) {
	data, err := c.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: get: %w", err)
	}

	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("jobs: unmarshal: %w", err)
	}
	return &j, nil
}

// Update runs fn inside a WATCH/MULTI transaction and retries when another
// writer touched the key in between.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(j *Job) error) (*Job, error) {
	key := s.key(id)

	var updated *Job
	txf := func(tx *redis.Tx) error {
		j, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(j); err != nil {
			return err
		}

		data, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("jobs: marshal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			if j.State.Terminal() && j.CompletedAt != nil {
				pipe.ZAdd(ctx, completedKey, redis.Z{
					Score:  float64(j.CompletedAt.Unix()),
					Member: j.ID,
				})
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = j
		return nil
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("jobs: update %s: too much contention", id)
}

// DeleteCompletedBefore removes terminal jobs that completed before cutoff.
func (s *RedisStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	upper := fmt.Sprintf("(%d", cutoff.Unix())

	for {
		ids, err := s.client.ZRangeByScore(ctx, completedKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   upper,
			Count: sweepBatch,
		}).Result()
		if err != nil {
			return deleted, fmt.Errorf("jobs: scan completed: %w", err)
		}
		if len(ids) == 0 {
			return deleted, nil
		}

		keys := make([]string, len(ids))
		members := make([]any, len(ids))
		for i, id := range ids {
			keys[i] = s.key(id)
			members[i] = id
		}

		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			pipe.ZRem(ctx, completedKey, members...)
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("jobs: delete completed: %w", err)
		}
		deleted += len(ids)

		if len(ids) < sweepBatch {
			return deleted, nil
		}
	}
}
