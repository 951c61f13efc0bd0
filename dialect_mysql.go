package main

import (
	"fmt"
	"strings"
)

type mysqlDialect struct{}

func (m *mysqlDialect) Name() string { return "mysql" }

func (m *mysqlDialect) QuoteIdent(name string) string {
	if plainIdent(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (m *mysqlDialect) ColumnType(col ColumnDefinition) string {
	var t string
	switch col.Type {
	case TypeInteger:
		t = "INT"
	case TypeBigInt:
		t = "BIGINT"
	case TypeVarchar:
		if col.MaxLength > 0 {
			t = fmt.Sprintf("VARCHAR(%d)", col.MaxLength)
		} else {
			t = "VARCHAR(255)"
		}
	case TypeText:
		t = "TEXT"
	case TypeTimestamp:
		t = "DATETIME"
	case TypeDate:
		t = "DATE"
	case TypeDecimal:
		t = "DECIMAL(18,6)"
	case TypeBoolean:
		t = "TINYINT(1)"
	case TypeFloat:
		t = "DOUBLE"
	case TypeJSON:
		t = "JSON"
	case TypeBlob:
		t = "BLOB"
	default:
		t = string(col.Type)
	}
	if col.AutoIncrement {
		t += " AUTO_INCREMENT"
	}
	return t
}

func (m *mysqlDialect) RenderColumn(col ColumnDefinition) string {
	return renderColumnBase(m, col)
}

func (m *mysqlDialect) RenderCreateTable(t TableDefinition) string {
	return renderCreateTableBase(m, t)
}

func (m *mysqlDialect) RenderDropTable(name string) string {
	return fmt.Sprintf("DROP TABLE %s", m.QuoteIdent(name))
}

func (m *mysqlDialect) RenderAddColumn(table string, col ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", m.QuoteIdent(table), m.RenderColumn(col))
}

func (m *mysqlDialect) RenderDropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", m.QuoteIdent(table), m.QuoteIdent(column))
}

// RenderModifyColumn uses MODIFY COLUMN with the full target definition, as
// MySQL redefines the column in one clause.
func (m *mysqlDialect) RenderModifyColumn(table string, from, to ColumnDefinition) (string, string, bool) {
	up := fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", m.QuoteIdent(table), m.RenderColumn(to))
	down := fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", m.QuoteIdent(table), m.RenderColumn(from))
	return up, down, false
}

func (m *mysqlDialect) RenderCreateIndex(rec IndexRecommendation) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if rec.Type == IndexUnique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX %s ON %s (%s)", rec.indexName(), m.QuoteIdent(rec.Table), quotedColumnList(m, rec.Columns))
	if rec.Type == IndexHash {
		b.WriteString(" USING HASH")
	}
	return b.String()
}

func (m *mysqlDialect) RenderDropIndex(table, name string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", m.QuoteIdent(name), m.QuoteIdent(table))
}

func (m *mysqlDialect) SupportsCovering() bool        { return false }
func (m *mysqlDialect) SupportsConcurrentIndex() bool { return false }

// MySQL DDL statements commit implicitly, so the all-or-nothing apply
// guarantee does not hold there. Flagged in operation metadata at
// generation time.
func (m *mysqlDialect) SupportsTransactionalDDL() bool { return false }

func (m *mysqlDialect) Placeholder(int) string { return "?" }
