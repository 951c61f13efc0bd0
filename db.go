package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// dbConn abstracts the target database handle so the orchestrator works the
// same against pgx (PostgreSQL) and database/sql (MySQL, SQLite) targets.
type dbConn interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryRowScan(ctx context.Context, query string, args []any, dest ...any) error
	QueryRows(ctx context.Context, query string, args []any, scan func(scanRow) error) error
	Begin(ctx context.Context) (dbTx, error)
	Close()
}

// dbTx is a single database transaction.
type dbTx interface {
	Exec(ctx context.Context, query string, args ...any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// scanRow is the common subset of pgx.Rows and sql.Rows scanning.
type scanRow interface {
	Scan(dest ...any) error
}

// openTarget dials the configured target database and verifies the
// connection with a ping.
func openTarget(ctx context.Context, cfg *Config) (dbConn, error) {
	switch cfg.Target.Dialect {
	case "postgresql", "postgres":
		pool, err := pgxpool.New(ctx, cfg.Target.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return &pgxConn{pool: pool}, nil
	case "mysql":
		db, err := sql.Open("mysql", cfg.Target.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetConnMaxLifetime(3 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		return &sqlConn{db: db}, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.Target.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
		return &sqlConn{db: db}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", cfg.Target.Dialect)
	}
}

// --- pgx-backed target ---

type pgxConn struct {
	pool *pgxpool.Pool
}

func (c *pgxConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.pool.Exec(ctx, query, args...)
	return err
}

func (c *pgxConn) QueryRowScan(ctx context.Context, query string, args []any, dest ...any) error {
	return c.pool.QueryRow(ctx, query, args...).Scan(dest...)
}

func (c *pgxConn) QueryRows(ctx context.Context, query string, args []any, scan func(scanRow) error) error {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (c *pgxConn) Begin(ctx context.Context) (dbTx, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (c *pgxConn) Close() { c.pool.Close() }

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// --- database/sql-backed target (MySQL, SQLite) ---

type sqlConn struct {
	db *sql.DB
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

func (c *sqlConn) QueryRowScan(ctx context.Context, query string, args []any, dest ...any) error {
	return c.db.QueryRowContext(ctx, query, args...).Scan(dest...)
}

func (c *sqlConn) QueryRows(ctx context.Context, query string, args []any, scan func(scanRow) error) error {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (c *sqlConn) Begin(ctx context.Context) (dbTx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &stdTx{tx: tx}, nil
}

func (c *sqlConn) Close() { c.db.Close() }

type stdTx struct {
	tx *sql.Tx
}

func (t *stdTx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *stdTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *stdTx) Rollback(context.Context) error { return t.tx.Rollback() }
