package app

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/config"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/db"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/redis"
)

type Infra struct {
	DB    *sql.DB
	Redis *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	sqlDB, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(cfg.DatabaseDSN); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("database ready", nil)

	redisClient, err := redis.New(ctx, redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})

	return &Infra{
		DB:    sqlDB,
		Redis: redisClient,
	}, nil
}

// checks returns the readiness probes for /healthz.
func (i *Infra) checks() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"postgres": i.DB.PingContext,
		"redis": func(ctx context.Context) error {
			return i.Redis.Ping(ctx).Err()
		},
	}
}

func (i *Infra) Close() error {
	return errors.Join(i.Redis.Close(), i.DB.Close())
}
