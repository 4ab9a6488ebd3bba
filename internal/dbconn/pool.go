package dbconn

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/careset/fhirstore/internal/txn"
)

// Config holds pool sizing plus optional observability hooks.
type Config struct {
	DSN string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	Logger  *zap.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// DefaultConfig returns sensible pool defaults for a single service
// instance.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxConns:        25,
		MinConns:        2,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

// Pool wraps *pgxpool.Pool and implements txn.Pool, instrumented with
// Prometheus metrics and OpenTelemetry tracing when configured.
type Pool struct {
	pool    *pgxpool.Pool
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

var _ txn.Pool = (*Pool)(nil)

// NewPool opens a pgxpool.Pool from cfg.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("dbconn: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgxCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pgxCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pgxCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("dbconn: open pool: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{pool: pool, logger: logger, metrics: cfg.Metrics, tracer: cfg.Tracer}, nil
}

// Acquire checks out a connection exclusively for one outermost
// transaction. The release func always returns the connection to the
// pool exactly once.
func (p *Pool) Acquire(ctx context.Context) (txn.ConnectionHandle, func(), error) {
	start := time.Now()
	conn, err := p.pool.Acquire(ctx)
	if p.metrics != nil {
		p.metrics.ObserveAcquire(time.Since(start), err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dbconn: acquire connection: %w", err)
	}

	handle := &PgxHandle{conn: conn}
	var released bool
	release := func() {
		if released {
			return
		}
		released = true
		conn.Release()
	}

	if p.tracer != nil {
		handle2 := &tracedHandle{ConnectionHandle: handle, tracer: p.tracer}
		return handle2, release, nil
	}
	return handle, release, nil
}

// Close shuts down the underlying pool. Call once at process shutdown.
func (p *Pool) Close() {
	p.pool.Close()
}

// Stat exposes pgxpool's own statistics for health checks.
func (p *Pool) Stat() *pgxpool.Stat {
	return p.pool.Stat()
}
