package main

import (
	"context"
	"fmt"
	"log"
)

// autoMigrateOptions controls one auto-migration run. The three flags are
// composable; Confirm is the injected confirmation callback so the state
// machine has no terminal coupling. Non-interactive callers supply a
// constant implementation.
type autoMigrateOptions struct {
	DryRun      bool
	AutoConfirm bool
	Confirm     func(preview string) bool
}

// migrator orchestrates inspect, diff, generate, preview, confirm, apply,
// record, and rollback against one target database.
type migrator struct {
	conn dbConn
	d    dialect
	led  *ledger
	cfg  *Config
}

func newMigrator(conn dbConn, d dialect, cfg *Config) *migrator {
	return &migrator{
		conn: conn,
		d:    d,
		led:  &ledger{conn: conn, d: d},
		cfg:  cfg,
	}
}

// autoMigrate runs the full state machine: INSPECT, DIFF, GENERATE, PREVIEW,
// CONFIRM, APPLY, RECORD. It returns the generated migration (nil when the
// schemas already match), even for dry runs and declined confirmations.
func (m *migrator) autoMigrate(ctx context.Context, target map[string]TableDefinition, opts autoMigrateOptions) (*Migration, error) {
	if err := m.led.ensure(ctx); err != nil {
		return nil, err
	}

	log.Printf("inspecting current schema...")
	current, err := inspectSchema(ctx, m.conn, m.d, m.cfg.Target.Schema)
	if err != nil {
		return nil, fmt.Errorf("inspect schema: %w", err)
	}
	log.Printf("found %d tables", len(current))

	diff, err := compareSchemas(current, target)
	if err != nil {
		return nil, err
	}
	if !diff.HasChanges() {
		log.Printf("schema is up to date, nothing to migrate")
		return nil, nil
	}
	log.Printf("diff: %d table(s) to create, %d to drop, %d to modify",
		len(diff.TablesToCreate), len(diff.TablesToDrop), len(diff.TablesToModify))

	migration, warnings, err := generateMigration(diff, m.cfg.MigrationName, m.d)
	if err != nil {
		return nil, fmt.Errorf("generate migration: %w", err)
	}
	for _, w := range warnings {
		log.Printf("  WARN: %s", w)
	}
	if len(warnings) > 0 && m.cfg.OnIrreversible == "error" {
		return migration, fmt.Errorf("migration contains %d irreversible or reduced-capability operation(s) and on_irreversible=error", len(warnings))
	}

	if m.cfg.MigrationsDir != "" {
		path, err := writeMigrationFile(m.cfg.resolvePath(m.cfg.MigrationsDir), migration)
		if err != nil {
			return nil, err
		}
		log.Printf("wrote migration definition to %s", path)
	}

	preview := renderMigrationPreview(migration)
	fmt.Println(preview)

	if opts.DryRun {
		log.Printf("dry run: migration %s generated but not applied", migration.Version)
		return migration, nil
	}

	if !opts.AutoConfirm {
		if opts.Confirm == nil || !opts.Confirm(preview) {
			log.Printf("migration %s aborted by operator", migration.Version)
			return migration, nil
		}
	}

	if err := m.apply(ctx, migration); err != nil {
		return migration, err
	}
	log.Printf("migration %s applied (%d operations)", migration.Version, len(migration.Operations))
	return migration, nil
}

// apply executes all operations of one migration inside a single
// transaction under the ledger lock, then records the outcome before
// returning. Any operation failure rolls the whole transaction back and the
// migration is recorded FAILED with the triggering error.
func (m *migrator) apply(ctx context.Context, migration *Migration) error {
	if err := m.verifyChecksum(ctx, migration); err != nil {
		return err
	}

	if err := m.led.acquireLock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := m.led.releaseLock(ctx); err != nil {
			log.Printf("  WARN: %v", err)
		}
	}()

	if err := runHooks(ctx, m.conn, m.cfg, m.cfg.Hooks.BeforeApply, "before_apply"); err != nil {
		return err
	}

	tx, err := m.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for i, op := range migration.Operations {
		log.Printf("  [%d/%d] %s", i+1, len(migration.Operations), op.Description)
		if err := tx.Exec(ctx, op.SQLUp); err != nil {
			tx.Rollback(ctx)
			migration.Status = StatusFailed
			applyErr := fmt.Errorf("apply operation %d (%s on %s): %w", i+1, op.Type, op.TableName, err)
			if recErr := m.led.record(ctx, migration, applyErr.Error()); recErr != nil {
				log.Printf("  WARN: %v", recErr)
			}
			return applyErr
		}
	}

	if err := tx.Commit(ctx); err != nil {
		migration.Status = StatusFailed
		applyErr := fmt.Errorf("commit migration %s: %w", migration.Version, err)
		if recErr := m.led.record(ctx, migration, applyErr.Error()); recErr != nil {
			log.Printf("  WARN: %v", recErr)
		}
		return applyErr
	}

	migration.Status = StatusApplied
	if err := m.led.record(ctx, migration, ""); err != nil {
		return err
	}

	return runHooks(ctx, m.conn, m.cfg, m.cfg.Hooks.AfterApply, "after_apply")
}

// verifyChecksum blocks application when a previously recorded version's
// checksum no longer matches: that is tampering or drift, resolved manually.
func (m *migrator) verifyChecksum(ctx context.Context, migration *Migration) error {
	stored, err := m.led.storedChecksum(ctx, migration.Version)
	if err != nil {
		return err
	}
	if stored != "" && stored != migration.Checksum {
		return fmt.Errorf("checksum mismatch for migration %s: recorded %s, regenerated %s; resolve manually before applying",
			migration.Version, stored, migration.Checksum)
	}
	if migration.Checksum != migrationChecksum(migration.Operations) {
		return fmt.Errorf("migration %s has been modified after generation (checksum mismatch)", migration.Version)
	}
	return nil
}

// rollback executes the rollback SQL of an applied migration in reverse
// operation order inside one transaction. version "" targets the most
// recently applied migration.
func (m *migrator) rollback(ctx context.Context, version string) error {
	if err := m.led.ensure(ctx); err != nil {
		return err
	}

	migration, err := m.led.loadMigration(ctx, version)
	if err != nil {
		return err
	}
	if migration.Status != StatusApplied {
		return fmt.Errorf("migration %s has status %s; only APPLIED migrations can be rolled back", migration.Version, migration.Status)
	}
	if !migration.CanRollback() {
		return fmt.Errorf("migration %s cannot be rolled back: %d irreversible operation(s): %v",
			migration.Version, len(migration.IrreversibleOperations()), migration.IrreversibleOperations())
	}

	if err := m.led.acquireLock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := m.led.releaseLock(ctx); err != nil {
			log.Printf("  WARN: %v", err)
		}
	}()

	tx, err := m.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for i := len(migration.Operations) - 1; i >= 0; i-- {
		op := migration.Operations[i]
		log.Printf("  rolling back: %s", op.Description)
		if err := tx.Exec(ctx, op.SQLDown); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("rollback operation %s on %s: %w", op.Type, op.TableName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rollback of %s: %w", migration.Version, err)
	}

	if err := m.led.setStatus(ctx, migration.Version, StatusRolledBack); err != nil {
		return err
	}
	log.Printf("migration %s rolled back", migration.Version)
	return nil
}

// status reports applied/failed/pending counts from the ledger without
// re-running any diff.
func (m *migrator) status(ctx context.Context) (*MigrationStatusSummary, error) {
	if err := m.led.ensure(ctx); err != nil {
		return nil, err
	}
	return m.led.statusSummary(ctx)
}
