package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	ledgerTable = "schemaforge_migrations"
	lockTable   = "schemaforge_lock"
)

// ledger owns the migration-history table and the apply lock row.
type ledger struct {
	conn dbConn
	d    dialect
}

// MigrationStatusSummary is the aggregate returned by the status command.
type MigrationStatusSummary struct {
	Total      int
	Applied    int
	Failed     int
	Pending    int
	RolledBack int
}

// ensure creates the history and lock tables when missing. Portable DDL:
// TEXT columns only, timestamps stored as RFC3339 strings.
func (l *ledger) ensure(ctx context.Context) error {
	historyDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  version VARCHAR(32) PRIMARY KEY,
  name VARCHAR(255) NOT NULL,
  checksum VARCHAR(64) NOT NULL,
  status VARCHAR(16) NOT NULL,
  operations TEXT NOT NULL,
  error TEXT,
  applied_at VARCHAR(40) NOT NULL
)`, ledgerTable)
	if err := l.conn.Exec(ctx, historyDDL); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}

	lockDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  locked_by VARCHAR(255) NOT NULL,
  locked_at VARCHAR(40) NOT NULL
)`, lockTable)
	if err := l.conn.Exec(ctx, lockDDL); err != nil {
		return fmt.Errorf("create lock table: %w", err)
	}
	return nil
}

// acquireLock inserts the singleton lock row. The primary-key constraint
// makes concurrent process instances mutually exclusive; a violation means
// another migrator holds the lock.
func (l *ledger) acquireLock(ctx context.Context) error {
	owner := lockOwner()
	q := fmt.Sprintf("INSERT INTO %s (id, locked_by, locked_at) VALUES (1, %s, %s)",
		lockTable, l.d.Placeholder(1), l.d.Placeholder(2))
	if err := l.conn.Exec(ctx, q, owner, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("migration lock is held by another process (release by deleting the %s row if stale): %w", lockTable, err)
	}
	return nil
}

func (l *ledger) releaseLock(ctx context.Context) error {
	if err := l.conn.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = 1", lockTable)); err != nil {
		return fmt.Errorf("release migration lock: %w", err)
	}
	return nil
}

// record upserts one migration into the history before control returns to
// the caller. applyErr is retained for FAILED records.
func (l *ledger) record(ctx context.Context, m *Migration, applyErr string) error {
	ops, err := encodeOperations(m.Operations)
	if err != nil {
		return err
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE version = %s", ledgerTable, l.d.Placeholder(1))
	if err := l.conn.Exec(ctx, del, m.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Version, err)
	}

	ins := fmt.Sprintf(
		"INSERT INTO %s (version, name, checksum, status, operations, error, applied_at) VALUES (%s, %s, %s, %s, %s, %s, %s)",
		ledgerTable,
		l.d.Placeholder(1), l.d.Placeholder(2), l.d.Placeholder(3), l.d.Placeholder(4),
		l.d.Placeholder(5), l.d.Placeholder(6), l.d.Placeholder(7),
	)
	if err := l.conn.Exec(ctx, ins,
		m.Version, m.Name, m.Checksum, string(m.Status), ops, applyErr,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Version, err)
	}
	return nil
}

func (l *ledger) setStatus(ctx context.Context, version string, status MigrationStatus) error {
	q := fmt.Sprintf("UPDATE %s SET status = %s WHERE version = %s",
		ledgerTable, l.d.Placeholder(1), l.d.Placeholder(2))
	if err := l.conn.Exec(ctx, q, string(status), version); err != nil {
		return fmt.Errorf("update migration %s status: %w", version, err)
	}
	return nil
}

// statusSummary counts migrations per status without re-running any diff.
func (l *ledger) statusSummary(ctx context.Context) (*MigrationStatusSummary, error) {
	s := &MigrationStatusSummary{}
	q := fmt.Sprintf("SELECT status, COUNT(*) FROM %s GROUP BY status", ledgerTable)
	err := l.conn.QueryRows(ctx, q, nil, func(r scanRow) error {
		var status string
		var n int
		if err := r.Scan(&status, &n); err != nil {
			return err
		}
		s.Total += n
		switch MigrationStatus(status) {
		case StatusApplied:
			s.Applied += n
		case StatusFailed:
			s.Failed += n
		case StatusPending:
			s.Pending += n
		case StatusRolledBack:
			s.RolledBack += n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load migration status: %w", err)
	}
	return s, nil
}

// storedChecksum returns the recorded checksum for a version, or "" when the
// version has never been recorded.
func (l *ledger) storedChecksum(ctx context.Context, version string) (string, error) {
	q := fmt.Sprintf("SELECT checksum FROM %s WHERE version = %s", ledgerTable, l.d.Placeholder(1))
	var checksum string
	err := l.conn.QueryRows(ctx, q, []any{version}, func(r scanRow) error {
		return r.Scan(&checksum)
	})
	if err != nil {
		return "", fmt.Errorf("load checksum for %s: %w", version, err)
	}
	return checksum, nil
}

// loadMigration reads one recorded migration back, operations included.
// version "" loads the most recently applied migration.
func (l *ledger) loadMigration(ctx context.Context, version string) (*Migration, error) {
	var q string
	var args []any
	if version == "" {
		q = fmt.Sprintf(
			"SELECT version, name, checksum, status, operations FROM %s WHERE status = %s ORDER BY version DESC",
			ledgerTable, l.d.Placeholder(1))
		args = []any{string(StatusApplied)}
	} else {
		q = fmt.Sprintf(
			"SELECT version, name, checksum, status, operations FROM %s WHERE version = %s",
			ledgerTable, l.d.Placeholder(1))
		args = []any{version}
	}

	var m *Migration
	err := l.conn.QueryRows(ctx, q, args, func(r scanRow) error {
		if m != nil {
			return nil // first row only
		}
		var mig Migration
		var status, ops string
		if err := r.Scan(&mig.Version, &mig.Name, &mig.Checksum, &status, &ops); err != nil {
			return err
		}
		mig.Status = MigrationStatus(status)
		decoded, err := decodeOperations(ops)
		if err != nil {
			return err
		}
		mig.Operations = decoded
		m = &mig
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load migration: %w", err)
	}
	if m == nil {
		if version == "" {
			return nil, fmt.Errorf("no applied migration to roll back")
		}
		return nil, fmt.Errorf("migration %s not found in history", version)
	}
	return m, nil
}

// encodeOperations serializes operations as TOML for the ledger's
// operations column.
func encodeOperations(ops []MigrationOperation) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(struct {
		Operations []MigrationOperation `toml:"operations"`
	}{ops}); err != nil {
		return "", fmt.Errorf("encode operations: %w", err)
	}
	return buf.String(), nil
}

func decodeOperations(s string) ([]MigrationOperation, error) {
	var doc struct {
		Operations []MigrationOperation `toml:"operations"`
	}
	if _, err := toml.Decode(s, &doc); err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}
	return doc.Operations, nil
}

func lockOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s/pid-%d", host, os.Getpid())
}
