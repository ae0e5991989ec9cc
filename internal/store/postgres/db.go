// Package postgres is the durable credential store and audit trail.
package postgres

import (
	"context"
	"fmt"
	"time"

	"studentsnet/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 5 * time.Second

// Open connects and pings. Connection lifetime is capped at 30 minutes.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConnLifetime == 0 || cfg.MaxConnLifetime > 30*time.Minute {
		cfg.MaxConnLifetime = 30 * time.Minute
	}
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, domain.StoreError("open postgres pool", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, domain.StoreError("ping postgres", err)
	}

	return pool, nil
}
