package main

import (
	"fmt"
	"strings"
)

// dialect abstracts per-database SQL rendering and capability differences so
// the generator and the index engine stay engine-agnostic.
type dialect interface {
	// Name returns the configuration name ("postgresql", "mysql", "sqlite").
	Name() string

	// QuoteIdent quotes an identifier when required by the engine.
	QuoteIdent(name string) string

	// ColumnType renders the engine-specific SQL type for a column.
	ColumnType(col ColumnDefinition) string

	// RenderColumn renders one column clause for CREATE TABLE / ADD COLUMN.
	RenderColumn(col ColumnDefinition) string

	// RenderCreateTable renders a full CREATE TABLE statement.
	RenderCreateTable(t TableDefinition) string

	// RenderDropTable renders a DROP TABLE statement.
	RenderDropTable(name string) string

	// RenderAddColumn / RenderDropColumn render single-column ALTERs.
	RenderAddColumn(table string, col ColumnDefinition) string
	RenderDropColumn(table, column string) string

	// RenderModifyColumn renders the forward and reverse statements for a
	// column change. limited is true when the engine cannot express the
	// change natively and the statements are best-effort only.
	RenderModifyColumn(table string, from, to ColumnDefinition) (up, down string, limited bool)

	// RenderCreateIndex / RenderDropIndex render index DDL for the
	// recommendation engine. MySQL scopes index names to their table, so
	// dropping needs both.
	RenderCreateIndex(rec IndexRecommendation) string
	RenderDropIndex(table, name string) string

	// Capability probes.
	SupportsCovering() bool
	SupportsConcurrentIndex() bool
	SupportsTransactionalDDL() bool

	// Placeholder returns the 1-based query placeholder ($1 vs ?).
	Placeholder(n int) string
}

// newDialect returns the dialect implementation for the given name.
func newDialect(name string) (dialect, error) {
	switch name {
	case "postgresql", "postgres":
		return &postgresDialect{}, nil
	case "mysql":
		return &mysqlDialect{}, nil
	case "sqlite":
		return &sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q (must be postgresql, mysql, or sqlite)", name)
	}
}

// renderColumnBase renders the type and the NOT NULL / DEFAULT clauses shared
// by all three engines. Auto-increment handling stays dialect-specific.
func renderColumnBase(d dialect, col ColumnDefinition) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(col.Name))
	b.WriteByte(' ')
	b.WriteString(d.ColumnType(col))
	if !col.Nullable && !col.PrimaryKey {
		b.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		fmt.Fprintf(&b, " DEFAULT %s", *col.Default)
	}
	if col.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	return b.String()
}

// renderCreateTableBase is the shared CREATE TABLE body renderer.
func renderCreateTableBase(d dialect, t TableDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", d.QuoteIdent(t.Name))
	for i, col := range t.Columns {
		b.WriteString("  ")
		b.WriteString(d.RenderColumn(col))
		if i < len(t.Columns)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")
	return b.String()
}

func quotedColumnList(d dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// plainIdent reports whether an identifier is safe to leave unquoted:
// lowercase letters, digits, and underscores, not starting with a digit.
func plainIdent(name string) bool {
	for i, r := range name {
		if r >= 'a' && r <= 'z' || r == '_' {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return name != ""
}
