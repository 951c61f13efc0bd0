package main

import (
	"fmt"
	"sort"
)

// ColumnType is the semantic column type, mapped to dialect-specific SQL
// types at DDL-rendering time.
type ColumnType string

const (
	TypeInteger   ColumnType = "INTEGER"
	TypeBigInt    ColumnType = "BIGINT"
	TypeVarchar   ColumnType = "VARCHAR"
	TypeText      ColumnType = "TEXT"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeDate      ColumnType = "DATE"
	TypeDecimal   ColumnType = "DECIMAL"
	TypeBoolean   ColumnType = "BOOLEAN"
	TypeFloat     ColumnType = "FLOAT"
	TypeJSON      ColumnType = "JSON"
	TypeBlob      ColumnType = "BLOB"
)

var knownColumnTypes = map[ColumnType]bool{
	TypeInteger: true, TypeBigInt: true, TypeVarchar: true, TypeText: true,
	TypeTimestamp: true, TypeDate: true, TypeDecimal: true, TypeBoolean: true,
	TypeFloat: true, TypeJSON: true, TypeBlob: true,
}

// ColumnDefinition describes one column of a desired or introspected table.
// Compared by value; Default holds a raw SQL literal or expression.
type ColumnDefinition struct {
	Name          string     `toml:"name" yaml:"name"`
	Type          ColumnType `toml:"type" yaml:"type"`
	Nullable      bool       `toml:"nullable" yaml:"nullable"`
	Default       *string    `toml:"default" yaml:"default"`
	MaxLength     int        `toml:"max_length" yaml:"max_length"`
	PrimaryKey    bool       `toml:"primary_key" yaml:"primary_key"`
	AutoIncrement bool       `toml:"auto_increment" yaml:"auto_increment"`
}

func (c ColumnDefinition) validate() error {
	if c.Name == "" {
		return fmt.Errorf("column has no name")
	}
	if c.Type == "" {
		return fmt.Errorf("column %s has no type", c.Name)
	}
	if !knownColumnTypes[c.Type] {
		return fmt.Errorf("column %s has unknown type %q", c.Name, c.Type)
	}
	if c.AutoIncrement && c.Type != TypeInteger && c.Type != TypeBigInt {
		return fmt.Errorf("column %s: auto_increment requires an integer type, got %s", c.Name, c.Type)
	}
	return nil
}

func (c ColumnDefinition) equal(o ColumnDefinition) bool {
	if c.Name != o.Name || c.Type != o.Type || c.Nullable != o.Nullable ||
		c.MaxLength != o.MaxLength || c.PrimaryKey != o.PrimaryKey ||
		c.AutoIncrement != o.AutoIncrement {
		return false
	}
	if (c.Default == nil) != (o.Default == nil) {
		return false
	}
	if c.Default != nil && *c.Default != *o.Default {
		return false
	}
	return true
}

// TableDefinition is an ordered list of columns. Column order matters for
// generated DDL but not for diffing. At most one column may be the primary
// key; composite keys are not modeled.
type TableDefinition struct {
	Name    string             `toml:"name" yaml:"name"`
	Columns []ColumnDefinition `toml:"columns" yaml:"columns"`
}

func (t TableDefinition) validate() error {
	if t.Name == "" {
		return fmt.Errorf("table has no name")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	pks := 0
	for _, c := range t.Columns {
		if err := c.validate(); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = true
		if c.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return fmt.Errorf("table %s: %d primary key columns (composite keys unsupported)", t.Name, pks)
	}
	return nil
}

func (t TableDefinition) column(name string) (ColumnDefinition, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// TableChange carries both sides of a modified table so the generator can
// derive minimal per-column operations.
type TableChange struct {
	Name    string
	Current TableDefinition
	Target  TableDefinition
}

// SchemaDiff is the structural difference between a current and a target
// schema. A table name appears in at most one of the three buckets.
type SchemaDiff struct {
	TablesToCreate []TableDefinition
	TablesToDrop   []string
	TablesToModify []TableChange
}

func (d *SchemaDiff) HasChanges() bool {
	return len(d.TablesToCreate) > 0 || len(d.TablesToDrop) > 0 || len(d.TablesToModify) > 0
}

func (d *SchemaDiff) ChangeCount() int {
	return len(d.TablesToCreate) + len(d.TablesToDrop) + len(d.TablesToModify)
}

// OperationType classifies a single DDL operation inside a migration.
type OperationType string

const (
	OpCreateTable  OperationType = "CREATE_TABLE"
	OpDropTable    OperationType = "DROP_TABLE"
	OpAddColumn    OperationType = "ADD_COLUMN"
	OpDropColumn   OperationType = "DROP_COLUMN"
	OpModifyColumn OperationType = "MODIFY_COLUMN"
	OpCreateIndex  OperationType = "CREATE_INDEX"
	OpDropIndex    OperationType = "DROP_INDEX"
)

// irreversibleSQLDown builds the SQLDown placeholder for operations that
// cannot be rolled back automatically. It is a comment so it can never
// execute; the Reversible flag, not this string, is what rollback logic
// checks.
func irreversibleSQLDown(what string) string {
	return "-- Cannot automatically recreate " + what
}

// MigrationOperation is one forward/rollback SQL pair with reversibility
// tracking. Metadata carries dialect capability flags such as "limitation"
// and "transactional".
type MigrationOperation struct {
	Type         OperationType     `toml:"type"`
	TableName    string            `toml:"table"`
	Description  string            `toml:"description"`
	SQLUp        string            `toml:"sql_up"`
	SQLDown      string            `toml:"sql_down"`
	Reversible   bool              `toml:"reversible"`
	RollbackNote string            `toml:"rollback_note,omitempty"`
	Metadata     map[string]string `toml:"metadata,omitempty"`
}

// MigrationStatus is the lifecycle state of a migration in the ledger.
type MigrationStatus string

const (
	StatusPending    MigrationStatus = "PENDING"
	StatusApplied    MigrationStatus = "APPLIED"
	StatusFailed     MigrationStatus = "FAILED"
	StatusRolledBack MigrationStatus = "ROLLED_BACK"
)

// Migration is an ordered, versioned, checksummed set of operations.
// Append-only once applied; a FAILED migration is retried by regenerating,
// never by mutating the recorded one.
type Migration struct {
	Version    string               `toml:"version"`
	Name       string               `toml:"name"`
	Dialect    string               `toml:"dialect"`
	Operations []MigrationOperation `toml:"operations"`
	Checksum   string               `toml:"checksum"`
	Status     MigrationStatus      `toml:"status"`
}

// CanRollback reports whether every contained operation is reversible.
func (m *Migration) CanRollback() bool {
	for _, op := range m.Operations {
		if !op.Reversible {
			return false
		}
	}
	return len(m.Operations) > 0
}

// IrreversibleOperations lists the descriptions of operations that block
// rollback, for generation-time warnings.
func (m *Migration) IrreversibleOperations() []string {
	var out []string
	for _, op := range m.Operations {
		if !op.Reversible {
			out = append(out, op.Description)
		}
	}
	return out
}

// validateSchema runs the fail-fast validation sweep over a schema mapping
// and returns all findings, sorted for stable output.
func validateSchema(schema map[string]TableDefinition) []string {
	var errs []string
	for name, t := range schema {
		if t.Name != "" && t.Name != name {
			errs = append(errs, fmt.Sprintf("table %s: definition is named %q", name, t.Name))
			continue
		}
		t.Name = name
		if err := t.validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	sort.Strings(errs)
	return errs
}
