// Package db owns the pgx pool behind the postgres store
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyzr/workflow-router/common/config"
	"github.com/lyzr/workflow-router/common/logger"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
	pingTimeout     = 3 * time.Second
)

// DB is a pgx pool with the router's lifecycle helpers
type DB struct {
	*pgxpool.Pool
	log *logger.Logger
}

// New opens a pool for dsn. Postgres often comes up after the router in
// compose setups, so the first ping is retried with a linear backoff.
func New(ctx context.Context, dsn string, cfg config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	poolConfig.MaxConnLifetime = cfg.MaxLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	database := &DB{Pool: pool, log: log}
	if err := database.waitReady(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("database connected", "host", cfg.Host, "db", cfg.Database, "max_conns", poolConfig.MaxConns)
	return database, nil
}

func (db *DB) waitReady(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = db.Health(ctx); err == nil {
			return nil
		}
		db.log.Warn("database not ready", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * connectBackoff):
		}
	}
	return fmt.Errorf("ping database after %d attempts: %w", connectAttempts, err)
}

// InTx runs fn in a transaction, committing when fn returns nil
func (db *DB) InTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, db.Pool, fn)
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.log.Info("closing database connection pool")
	db.Pool.Close()
}

// Health pings the pool
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.Pool.Ping(ctx)
}
