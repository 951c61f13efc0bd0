package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"
)

var (
	versionMu   sync.Mutex
	lastVersion string
)

// newVersion returns a millisecond-resolution UTC timestamp version, bumped
// past the previous one when two generations land in the same instant.
// Without the floor, a duplicate version would later be rejected by the
// checksum drift check with a misleading tampering message.
func newVersion() string {
	versionMu.Lock()
	defer versionMu.Unlock()
	now := time.Now().UTC()
	v := now.Format("20060102150405") + fmt.Sprintf("%03d", now.Nanosecond()/int(time.Millisecond))
	if v <= lastVersion {
		if n, err := strconv.ParseUint(lastVersion, 10, 64); err == nil {
			v = strconv.FormatUint(n+1, 10)
		}
	}
	lastVersion = v
	return v
}

// generateMigration turns a schema diff into an ordered migration for one
// dialect. Operation order is dependency-safe: table creations first, then
// per modified table adds before modifies before drops, then table drops.
// The returned warnings describe irreversible or reduced-capability
// operations; they never block generation.
func generateMigration(diff *SchemaDiff, name string, d dialect) (*Migration, []string, error) {
	if diff == nil {
		return nil, nil, fmt.Errorf("nil diff")
	}

	m := &Migration{
		Version: newVersion(),
		Name:    name,
		Dialect: d.Name(),
		Status:  StatusPending,
	}
	var warnings []string

	for _, t := range diff.TablesToCreate {
		m.Operations = append(m.Operations, MigrationOperation{
			Type:        OpCreateTable,
			TableName:   t.Name,
			Description: fmt.Sprintf("Create table %s with %d columns", t.Name, len(t.Columns)),
			SQLUp:       d.RenderCreateTable(t),
			SQLDown:     d.RenderDropTable(t.Name),
			Reversible:  true,
			Metadata:    transactionalMetadata(d, nil),
		})
	}

	for _, change := range diff.TablesToModify {
		ops, w := generateColumnOperations(change, d)
		m.Operations = append(m.Operations, ops...)
		warnings = append(warnings, w...)
	}

	for _, tbl := range diff.TablesToDrop {
		warnings = append(warnings, fmt.Sprintf(
			"DROP TABLE %s is irreversible: the diff carries only the table name, not its definition", tbl))
		m.Operations = append(m.Operations, MigrationOperation{
			Type:         OpDropTable,
			TableName:    tbl,
			Description:  fmt.Sprintf("Drop table %s (table data and structure are not recoverable)", tbl),
			SQLUp:        d.RenderDropTable(tbl),
			SQLDown:      irreversibleSQLDown(fmt.Sprintf("dropped table %s", tbl)),
			Reversible:   false,
			RollbackNote: "table definition is not retained by the diff; restore from backup",
			Metadata:     transactionalMetadata(d, nil),
		})
	}

	m.Checksum = migrationChecksum(m.Operations)
	return m, warnings, nil
}

// generateColumnOperations derives minimal per-column operations for one
// modified table: adds, then modifies, then drops. Adding before dropping
// reduces the chance of transient constraint violations.
func generateColumnOperations(change TableChange, d dialect) ([]MigrationOperation, []string) {
	var ops []MigrationOperation
	var warnings []string
	delta := diffColumns(change)

	for _, col := range delta.toAdd {
		ops = append(ops, MigrationOperation{
			Type:        OpAddColumn,
			TableName:   change.Name,
			Description: fmt.Sprintf("Add column %s to %s", col.Name, change.Name),
			SQLUp:       d.RenderAddColumn(change.Name, col),
			SQLDown:     d.RenderDropColumn(change.Name, col.Name),
			Reversible:  true,
			Metadata:    transactionalMetadata(d, nil),
		})
	}

	for _, pair := range delta.toModify {
		from, to := pair[0], pair[1]
		up, down, limited := d.RenderModifyColumn(change.Name, from, to)
		meta := map[string]string{}
		if limited {
			meta["limitation"] = fmt.Sprintf(
				"%s cannot modify columns in place; statement is best-effort and a manual table rebuild may be required", d.Name())
			warnings = append(warnings, fmt.Sprintf(
				"MODIFY COLUMN %s.%s: %s", change.Name, to.Name, meta["limitation"]))
		}
		ops = append(ops, MigrationOperation{
			Type:        OpModifyColumn,
			TableName:   change.Name,
			Description: fmt.Sprintf("Modify column %s on %s (%s -> %s)", to.Name, change.Name, describeColumn(from), describeColumn(to)),
			SQLUp:       up,
			SQLDown:     down,
			Reversible:  true,
			Metadata:    transactionalMetadata(d, meta),
		})
	}

	for _, col := range delta.toDrop {
		op := MigrationOperation{
			Type:      OpDropColumn,
			TableName: change.Name,
			Metadata:  transactionalMetadata(d, nil),
		}
		if col.validate() == nil {
			// Prior definition known: rollback recreates the structure,
			// never the data.
			op.Description = fmt.Sprintf("Drop column %s from %s (column data is not recoverable; rollback restores structure only)", col.Name, change.Name)
			op.SQLDown = d.RenderAddColumn(change.Name, col)
			op.Reversible = true
			op.RollbackNote = "recreates the column structure; dropped data is not recoverable"
		} else {
			op.Description = fmt.Sprintf("Drop column %s from %s", col.Name, change.Name)
			op.SQLDown = irreversibleSQLDown(fmt.Sprintf("dropped column %s.%s", change.Name, col.Name))
			op.Reversible = false
			op.RollbackNote = "prior column definition is incomplete; cannot recreate"
			warnings = append(warnings, fmt.Sprintf(
				"DROP COLUMN %s.%s is irreversible: prior definition is incomplete", change.Name, col.Name))
		}
		op.SQLUp = d.RenderDropColumn(change.Name, col.Name)
		ops = append(ops, op)
	}

	return ops, warnings
}

// migrationChecksum hashes the ordered forward SQL so regenerating the same
// diff yields the same checksum and post-generation tampering is detectable.
func migrationChecksum(ops []MigrationOperation) string {
	h := sha256.New()
	for _, op := range ops {
		h.Write([]byte(op.SQLUp))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// transactionalMetadata merges the dialect's DDL-transaction capability into
// per-operation metadata. Engines with implicit DDL commits lose the
// all-or-nothing guarantee; that is recorded here rather than silently.
func transactionalMetadata(d dialect, meta map[string]string) map[string]string {
	if d.SupportsTransactionalDDL() {
		if len(meta) == 0 {
			return nil
		}
		return meta
	}
	if meta == nil {
		meta = map[string]string{}
	}
	meta["transactional"] = "false"
	return meta
}

func describeColumn(c ColumnDefinition) string {
	s := string(c.Type)
	if c.MaxLength > 0 {
		s = fmt.Sprintf("%s(%d)", s, c.MaxLength)
	}
	if c.Nullable {
		return s + " NULL"
	}
	return s + " NOT NULL"
}
