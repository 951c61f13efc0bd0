package main

import (
	"context"
	"strings"
	"testing"
)

func TestNormalizePostgresDefault(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "'active'::character varying", want: "'active'"},
		{in: "'it''s'::text", want: "'it''s'"},
		{in: "0", want: "0"},
		{in: "now()", want: "now()"},
		{in: "CURRENT_TIMESTAMP", want: "CURRENT_TIMESTAMP"},
		{in: "NULL::character varying", want: "NULL"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := normalizePostgresDefault(tt.in); got != tt.want {
			t.Errorf("normalizePostgresDefault(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeMySQLDefault(t *testing.T) {
	tests := []struct {
		typ  ColumnType
		in   string
		want string
	}{
		{typ: TypeVarchar, in: "active", want: "'active'"},
		{typ: TypeVarchar, in: "'active'", want: "'active'"},
		{typ: TypeVarchar, in: "it's", want: "'it''s'"},
		{typ: TypeInteger, in: "0", want: "0"},
		{typ: TypeTimestamp, in: "CURRENT_TIMESTAMP", want: "CURRENT_TIMESTAMP"},
		{typ: TypeText, in: "uuid()", want: "uuid()"},
	}
	for _, tt := range tests {
		if got := normalizeMySQLDefault(tt.typ, tt.in); got != tt.want {
			t.Errorf("normalizeMySQLDefault(%s, %q) = %q, want %q", tt.typ, tt.in, got, tt.want)
		}
	}
}

// An introspected string default must compare equal to the schema-file
// literal, or every run regenerates a spurious MODIFY_COLUMN.
func TestIntrospectedDefaultMatchesSchemaFile(t *testing.T) {
	fileCol := ColumnDefinition{
		Name:      "status",
		Type:      TypeVarchar,
		MaxLength: 20,
		Default:   strPtr("'active'"),
	}

	pgRaw := normalizePostgresDefault("'active'::character varying")
	liveCol := fileCol
	liveCol.Default = &pgRaw
	if !fileCol.equal(liveCol) {
		t.Errorf("postgres default %q does not match file default %q", pgRaw, *fileCol.Default)
	}

	myRaw := normalizeMySQLDefault(TypeVarchar, "active")
	liveCol.Default = &myRaw
	if !fileCol.equal(liveCol) {
		t.Errorf("mysql default %q does not match file default %q", myRaw, *fileCol.Default)
	}
}

func TestListExistingIndexes_ExcludesPrimaryKeysAndLedger(t *testing.T) {
	conn := &fakeConn{rows: map[string][][]any{
		"FROM pg_indexes": {{"idx_orders_customer_id"}},
	}}

	names, err := listExistingIndexes(context.Background(), conn, mustDialect(t, "postgresql"), "public")
	if err != nil {
		t.Fatalf("listExistingIndexes() error: %v", err)
	}
	if len(names) != 1 || names[0] != "idx_orders_customer_id" {
		t.Fatalf("names = %v", names)
	}

	query := conn.executed[len(conn.executed)-1]
	if !strings.Contains(query, "NOT LIKE '%_pkey'") {
		t.Errorf("postgres listing must exclude primary-key indexes: %s", query)
	}
	if !strings.Contains(query, "NOT LIKE 'schemaforge_%'") {
		t.Errorf("postgres listing must exclude the tool's own tables: %s", query)
	}

	conn = &fakeConn{}
	if _, err := listExistingIndexes(context.Background(), conn, mustDialect(t, "mysql"), "shop"); err != nil {
		t.Fatalf("listExistingIndexes() error: %v", err)
	}
	query = conn.executed[len(conn.executed)-1]
	if !strings.Contains(query, "INDEX_NAME <> 'PRIMARY'") || !strings.Contains(query, `NOT LIKE 'schemaforge\_%'`) {
		t.Errorf("mysql listing must exclude PRIMARY and the tool's own tables: %s", query)
	}

	conn = &fakeConn{}
	if _, err := listExistingIndexes(context.Background(), conn, mustDialect(t, "sqlite"), ""); err != nil {
		t.Fatalf("listExistingIndexes() error: %v", err)
	}
	query = conn.executed[len(conn.executed)-1]
	if !strings.Contains(query, "tbl_name NOT LIKE 'schemaforge_%'") {
		t.Errorf("sqlite listing must exclude the tool's own tables: %s", query)
	}
}
