package main

import (
	"fmt"
	"strings"
)

type sqliteDialect struct{}

func (s *sqliteDialect) Name() string { return "sqlite" }

func (s *sqliteDialect) QuoteIdent(name string) string {
	if plainIdent(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnType preserves declared type names (SQLite accepts any name and
// derives affinity) so that introspection maps columns back to the same
// semantic type.
func (s *sqliteDialect) ColumnType(col ColumnDefinition) string {
	switch col.Type {
	case TypeInteger:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeVarchar:
		if col.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.MaxLength)
		}
		return "VARCHAR(255)"
	case TypeText:
		return "TEXT"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeDate:
		return "DATE"
	case TypeDecimal:
		return "DECIMAL(18,6)"
	case TypeFloat:
		return "REAL"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeJSON:
		return "JSON"
	case TypeBlob:
		return "BLOB"
	}
	return string(col.Type)
}

func (s *sqliteDialect) RenderColumn(col ColumnDefinition) string {
	// AUTOINCREMENT is only legal on INTEGER PRIMARY KEY.
	if col.AutoIncrement && col.PrimaryKey {
		clause := fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", s.QuoteIdent(col.Name))
		if col.Default != nil {
			clause += fmt.Sprintf(" DEFAULT %s", *col.Default)
		}
		return clause
	}
	return renderColumnBase(s, col)
}

func (s *sqliteDialect) RenderCreateTable(t TableDefinition) string {
	return renderCreateTableBase(s, t)
}

func (s *sqliteDialect) RenderDropTable(name string) string {
	return fmt.Sprintf("DROP TABLE %s", s.QuoteIdent(name))
}

func (s *sqliteDialect) RenderAddColumn(table string, col ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", s.QuoteIdent(table), s.RenderColumn(col))
}

func (s *sqliteDialect) RenderDropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", s.QuoteIdent(table), s.QuoteIdent(column))
}

// RenderModifyColumn is best-effort only: SQLite has no ALTER COLUMN, so a
// real change of type, nullability, or default requires a table rebuild.
// The generic statements are emitted for review and the operation is
// flagged as limited so callers can decide whether to proceed.
func (s *sqliteDialect) RenderModifyColumn(table string, from, to ColumnDefinition) (string, string, bool) {
	up := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s", s.QuoteIdent(table), s.RenderColumn(to))
	down := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s", s.QuoteIdent(table), s.RenderColumn(from))
	return up, down, true
}

func (s *sqliteDialect) RenderCreateIndex(rec IndexRecommendation) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if rec.Type == IndexUnique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX %s ON %s (%s)", rec.indexName(), s.QuoteIdent(rec.Table), quotedColumnList(s, rec.Columns))
	if rec.Type == IndexPartial && rec.FilterPredicate != "" {
		fmt.Fprintf(&b, " WHERE %s", rec.FilterPredicate)
	}
	return b.String()
}

func (s *sqliteDialect) RenderDropIndex(_, name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", s.QuoteIdent(name))
}

func (s *sqliteDialect) SupportsCovering() bool         { return false }
func (s *sqliteDialect) SupportsConcurrentIndex() bool  { return false }
func (s *sqliteDialect) SupportsTransactionalDDL() bool { return true }

func (s *sqliteDialect) Placeholder(int) string { return "?" }
