package storage

import (
	"context"
	"errors"
	"fmt"
)

// Config holds connection settings for every storage backend. A backend with
// an empty host (or path, for SQLite) is not opened.
type Config struct {
	SQLitePath string
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
}

// DB bundles the opened backends. Any of them may be nil.
type DB struct {
	Log *SQLiteDB     // SQLite parse log with full-text search.
	CH  *ClickHouseDB // ClickHouse for parse analytics.
	PG  *PostgresDB   // PostgreSQL for reference data and parsed records.
}

// Open opens every configured backend. On failure the already opened ones
// are closed again.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	db := &DB{}

	if cfg.SQLitePath != "" {
		l, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		db.Log = l
	}

	if cfg.ClickHouse.Host != "" {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		db.CH = ch
	}

	if cfg.Postgres.Host != "" {
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		db.PG = pg
	}

	return db, nil
}

// Close closes all open connections.
func (d *DB) Close() error {
	var errs []error
	if d.Log != nil {
		if err := d.Log.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if d.PG != nil {
		d.PG.Close()
	}
	return errors.Join(errs...)
}

// CreateSchemas creates the server-side schemas. The SQLite schema is
// created on open.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if d.CH != nil {
		if err := d.CH.CreateSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	if d.PG != nil {
		if err := d.PG.CreateSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}
