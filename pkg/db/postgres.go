// Package db constructs the PostgreSQL connection pool shared by
// every engine operation.
package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kyros-ent/reservation/config"
)

// NewPool opens a pgxpool.Pool against cfg and verifies connectivity
// before returning. MaxConns follows cfg.PoolSize() (default 5, per
// the reservation service's pool-size default); the health-check and
// lifetime tunables below are unconditional operational defaults, not
// something the config surface exposes.
func NewPool(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db: parse config: %w", err)
	}

	poolCfg.MaxConns = cfg.PoolSize()
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.MaxConnLifetime = 1 * time.Hour
	poolCfg.MaxConnIdleTime = 15 * time.Minute

	// Database informational events (NOTICE, e.g. from a plpgsql RAISE
	// NOTICE; the query()/filter() routines raise none) are logged here rather
	// than surfaced to any query consumer — the streaming pipeline's
	// contract never forwards them as stream Items.
	poolCfg.ConnConfig.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		log.Printf("[db] notice: %s: %s", n.Severity, n.Message)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("db: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping failed: %w", err)
	}

	return pool, nil
}

// HealthCheck pings pool and returns nil if healthy.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pool.Ping(pingCtx)
}
