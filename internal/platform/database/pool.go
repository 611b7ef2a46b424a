// Package database opens the postgres pool shared by the proof and audit stores.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"attestor/internal/platform/config"
	"attestor/internal/platform/upstream"
)

const (
	upstreamName = "postgres"
	pingTimeout  = 5 * time.Second
)

type Pool struct {
	db *sql.DB
}

// New opens the pool and waits for the server to answer, retrying the ping
// cfg.ConnectAttempts times so a database that starts late does not fail the
// boot. It returns nil, nil when no URL is set. reg may be nil.
func New(ctx context.Context, cfg config.Database, reg prometheus.Registerer) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	_, err = upstream.Retry(ctx, upstream.Backoff{MaxAttempts: cfg.ConnectAttempts, MaxDelay: 5 * time.Second},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, ping(ctx, db)
		}, nil)
	if err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if reg != nil {
		if err := reg.Register(collectors.NewDBStatsCollector(db, "attestor")); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				db.Close() //nolint:errcheck // best-effort cleanup on init failure
				return nil, fmt.Errorf("register db stats: %w", err)
			}
		}
	}
	return &Pool{db: db}, nil
}

// ping classifies failures as outages so Retry treats them as transient.
func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return upstream.NewError(upstream.ErrorOutage, upstreamName, "ping failed", err)
	}
	return nil
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health is registered as the "database" readiness check.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("database not configured")
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
