package main

import (
	"fmt"
	"strings"
)

// pgReservedWords are PostgreSQL reserved words that must be quoted as identifiers.
var pgReservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "authorization": true, "between": true,
	"binary": true, "both": true, "case": true, "cast": true, "check": true,
	"collate": true, "column": true, "constraint": true, "create": true, "cross": true,
	"current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true, "deferrable": true,
	"desc": true, "distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "freeze": true,
	"from": true, "full": true, "grant": true, "group": true, "having": true,
	"ilike": true, "in": true, "initially": true, "inner": true, "intersect": true,
	"into": true, "is": true, "isnull": true, "join": true, "lateral": true,
	"leading": true, "left": true, "like": true, "limit": true, "localtime": true,
	"localtimestamp": true, "natural": true, "not": true, "notnull": true, "null": true,
	"offset": true, "on": true, "only": true, "or": true, "order": true, "outer": true,
	"overlaps": true, "placing": true, "primary": true, "references": true,
	"returning": true, "right": true, "select": true, "session_user": true,
	"similar": true, "some": true, "symmetric": true, "table": true, "then": true,
	"to": true, "trailing": true, "true": true, "union": true, "unique": true,
	"user": true, "using": true, "variadic": true, "verbose": true, "when": true,
	"where": true, "window": true, "with": true,
}

type postgresDialect struct{}

func (p *postgresDialect) Name() string { return "postgresql" }

func (p *postgresDialect) QuoteIdent(name string) string {
	if pgReservedWords[name] || !plainIdent(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

func (p *postgresDialect) ColumnType(col ColumnDefinition) string {
	switch col.Type {
	case TypeInteger:
		if col.AutoIncrement {
			return "SERIAL"
		}
		return "INTEGER"
	case TypeBigInt:
		if col.AutoIncrement {
			return "BIGSERIAL"
		}
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
	case TypeBoolean:
		return "BOOLEAN"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeJSON:
		return "JSONB"
	case TypeBlob:
		return "BYTEA"
	}
	return string(col.Type)
}

func (p *postgresDialect) RenderColumn(col ColumnDefinition) string {
	return renderColumnBase(p, col)
}

func (p *postgresDialect) RenderCreateTable(t TableDefinition) string {
	return renderCreateTableBase(p, t)
}

func (p *postgresDialect) RenderDropTable(name string) string {
	return fmt.Sprintf("DROP TABLE %s", p.QuoteIdent(name))
}

func (p *postgresDialect) RenderAddColumn(table string, col ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", p.QuoteIdent(table), p.RenderColumn(col))
}

func (p *postgresDialect) RenderDropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", p.QuoteIdent(table), p.QuoteIdent(column))
}

// RenderModifyColumn emits a single ALTER TABLE with comma-separated actions:
// TYPE change first, then SET/DROP NOT NULL, then SET/DROP DEFAULT.
func (p *postgresDialect) RenderModifyColumn(table string, from, to ColumnDefinition) (string, string, bool) {
	return p.alterColumn(table, from, to), p.alterColumn(table, to, from), false
}

func (p *postgresDialect) alterColumn(table string, from, to ColumnDefinition) string {
	col := p.QuoteIdent(to.Name)
	var actions []string
	if from.Type != to.Type || from.MaxLength != to.MaxLength {
		actions = append(actions, fmt.Sprintf("ALTER COLUMN %s TYPE %s", col, p.ColumnType(to)))
	}
	if from.Nullable != to.Nullable {
		if to.Nullable {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", col))
		} else {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", col))
		}
	}
	if !defaultsEqual(from.Default, to.Default) {
		if to.Default == nil {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s DROP DEFAULT", col))
		} else {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s SET DEFAULT %s", col, *to.Default))
		}
	}
	if len(actions) == 0 {
		// Attribute changes not expressible via ALTER COLUMN (pk flips).
		actions = append(actions, fmt.Sprintf("ALTER COLUMN %s TYPE %s", col, p.ColumnType(to)))
	}
	return fmt.Sprintf("ALTER TABLE %s %s", p.QuoteIdent(table), strings.Join(actions, ", "))
}

func (p *postgresDialect) RenderCreateIndex(rec IndexRecommendation) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if rec.Type == IndexUnique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX CONCURRENTLY ")
	b.WriteString(rec.indexName())
	fmt.Fprintf(&b, " ON %s", p.QuoteIdent(rec.Table))
	switch rec.Type {
	case IndexGIN:
		b.WriteString(" USING GIN")
	case IndexGIST:
		b.WriteString(" USING GIST")
	case IndexHash:
		b.WriteString(" USING HASH")
	}
	fmt.Fprintf(&b, " (%s)", quotedColumnList(p, rec.Columns))
	if rec.Type == IndexCovering && len(rec.IncludeColumns) > 0 {
		fmt.Fprintf(&b, " INCLUDE (%s)", quotedColumnList(p, rec.IncludeColumns))
	}
	if rec.Type == IndexPartial && rec.FilterPredicate != "" {
		fmt.Fprintf(&b, " WHERE %s", rec.FilterPredicate)
	}
	return b.String()
}

func (p *postgresDialect) RenderDropIndex(_, name string) string {
	return fmt.Sprintf("DROP INDEX CONCURRENTLY IF EXISTS %s", p.QuoteIdent(name))
}

func (p *postgresDialect) SupportsCovering() bool         { return true }
func (p *postgresDialect) SupportsConcurrentIndex() bool  { return true }
func (p *postgresDialect) SupportsTransactionalDDL() bool { return true }

func (p *postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func defaultsEqual(a, b *string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
