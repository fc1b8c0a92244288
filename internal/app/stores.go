package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"station-forecast-lab/internal/artifact"
	"station-forecast-lab/internal/cache"
	"station-forecast-lab/internal/config"
	"station-forecast-lab/internal/storage"
	chstore "station-forecast-lab/internal/storage/clickhouse"
	"station-forecast-lab/internal/storage/localfile"
	"station-forecast-lab/internal/storage/migrations"
	pgstore "station-forecast-lab/internal/storage/postgres"
)

// Stores holds the relational stores backing a time series source.
// Stations, Availability and Progress are nil for the local file source.
type Stores struct {
	Source       storage.TimeSeriesSource
	Stations     storage.StationStore
	Availability storage.AvailabilityStore
	Progress     storage.IngestProgressStore
}

// OpenStores opens the configured source. PostgreSQL is migrated on open
// and wins over the local data directory.
func OpenStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Stores, func(), error) {
	switch {
	case cfg.Database.PostgresDSN != "":
		pool, err := pgstore.NewPool(ctx, cfg.Database.PostgresDSN, pgstore.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info("using_postgres_source")
		return &Stores{
			Source:       pgstore.NewSource(pool),
			Stations:     pgstore.NewStationStore(pool),
			Availability: pgstore.NewAvailabilityStore(pool),
			Progress:     pgstore.NewIngestProgressStore(pool),
		}, pool.Close, nil

	case cfg.Database.LocalDataDir != "":
		src, err := localfile.NewSource(cfg.Database.LocalDataDir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using_local_data_source", zap.String("dir", cfg.Database.LocalDataDir))
		return &Stores{Source: src}, func() {}, nil
	}
	return nil, nil, ErrNoSource
}

// OpenPredictionStore opens the ClickHouse prediction log. It returns nil
// when no DSN is configured.
func OpenPredictionStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.PredictionStore, func(), error) {
	if cfg.Database.ClickHouseDSN == "" {
		return nil, func() {}, nil
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Database.ClickHouseDSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}
	cleanup := func() {
		if err := conn.Close(); err != nil {
			log.Warn("clickhouse_close_failed", zap.Error(err))
		}
	}
	return chstore.NewPredictionStore(conn), cleanup, nil
}

// OpenObjectStore returns the S3 store when a bucket is configured.
func OpenObjectStore(ctx context.Context, cfg *config.Config) (artifact.ObjectStore, error) {
	if cfg.Model.Bucket == "" {
		return nil, nil
	}
	store, err := artifact.NewS3Store(ctx, cfg.Model.Region, cfg.Model.S3Endpoint)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// OpenCache returns a Redis cache when an address is configured and an
// in-process cache otherwise.
func OpenCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (cache.Cache, func()) {
	if cfg.Server.RedisAddr == "" {
		return cache.NewMemory(cfg.Server.CacheTTL), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Server.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		// misses are served from the model; keep going
		log.Warn("redis_unreachable", zap.String("addr", cfg.Server.RedisAddr), zap.Error(err))
	}
	rc := cache.NewRedis(client, "", cfg.Server.CacheTTL)
	return rc, func() {
		if err := rc.Close(); err != nil {
			log.Warn("redis_close_failed", zap.Error(err))
		}
	}
}
