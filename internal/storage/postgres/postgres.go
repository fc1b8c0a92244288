// Package postgres implements the relational stores on top of pgx/v5:
// station metadata, availability history and the ingest cursor.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"station-forecast-lab/internal/observability"
	"station-forecast-lab/internal/storage"
)

// ApplicationName tags sessions in pg_stat_activity.
const ApplicationName = "station-forecast"

// PoolOptions sizes the connection pool. Zero values take the defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

// DefaultPoolOptions fits one ingester ticking every few minutes next to
// batch training reads.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:        10,
		MinConns:        0,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

func (o PoolOptions) withDefaults() PoolOptions {
	d := DefaultPoolOptions()
	if o.MaxConns <= 0 {
		o.MaxConns = d.MaxConns
	}
	if o.MinConns < 0 || o.MinConns > o.MaxConns {
		o.MinConns = d.MinConns
	}
	if o.MaxConnIdleTime <= 0 {
		o.MaxConnIdleTime = d.MaxConnIdleTime
	}
	return o
}

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a pool on dsn sized by opts and verifies it with a ping.
// Settings given in the DSN (pool_max_conns and friends) win over opts.
func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*Pool, error) {
	config, err := poolConfig(dsn, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

func poolConfig(dsn string, opts PoolOptions) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	opts = opts.withDefaults()

	if !strings.Contains(dsn, "pool_max_conns") {
		config.MaxConns = opts.MaxConns
	}
	if !strings.Contains(dsn, "pool_min_conns") {
		config.MinConns = opts.MinConns
	}
	if !strings.Contains(dsn, "pool_max_conn_idle_time") {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if config.ConnConfig.RuntimeParams["application_name"] == "" {
		config.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return config, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// PostgreSQL error codes
const (
	pgErrNotNullViolation = "23502" // not_null_violation
	pgErrUniqueViolation  = "23505" // unique_violation
	pgErrCheckViolation   = "23514" // check_violation
)

// translateError maps driver errors onto the storage sentinels. The
// original error stays in the chain for logging.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgErrUniqueViolation:
		return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, pgErr.Detail)
	case pgErrNotNullViolation, pgErrCheckViolation:
		return fmt.Errorf("%w: %s", storage.ErrInvalidInput, pgErr.Message)
	}
	return err
}

// observe records the duration and outcome of one store operation.
func observe(operation string, start time.Time, err error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), err)
}
