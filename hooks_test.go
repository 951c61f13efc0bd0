package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "two statements",
			sql:  "CREATE TABLE a (id INT); CREATE TABLE b (id INT);",
			want: []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"},
		},
		{
			name: "semicolon inside quoted string",
			sql:  "INSERT INTO t (v) VALUES ('a;b'); DELETE FROM t",
			want: []string{"INSERT INTO t (v) VALUES ('a;b')", "DELETE FROM t"},
		},
		{
			name: "escaped quote",
			sql:  "INSERT INTO t (v) VALUES ('it''s; fine');",
			want: []string{"INSERT INTO t (v) VALUES ('it''s; fine')"},
		},
		{
			name: "trailing statement without semicolon",
			sql:  "SELECT 1",
			want: []string{"SELECT 1"},
		},
		{
			name: "empty entries dropped",
			sql:  ";;\n;  SELECT 1; ;",
			want: []string{"SELECT 1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStatements(tt.sql)
			if len(got) != len(tt.want) {
				t.Fatalf("splitStatements() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("statement %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRunHooks_SchemaExpansionAndOrder(t *testing.T) {
	dir := t.TempDir()
	hook := filepath.Join(dir, "before.sql")
	content := "SET search_path TO {{schema}};\nANALYZE {{schema}}.orders;"
	if err := os.WriteFile(hook, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	conn := &fakeConn{}
	cfg := &Config{
		Target:    TargetConfig{Dialect: "postgresql", DSN: "x", Schema: "reporting"},
		configDir: dir,
	}

	if err := runHooks(context.Background(), conn, cfg, []string{"before.sql"}, "before_apply"); err != nil {
		t.Fatalf("runHooks() error: %v", err)
	}
	if len(conn.executed) != 2 {
		t.Fatalf("executed %d statements, want 2", len(conn.executed))
	}
	if conn.executed[0] != "SET search_path TO reporting" {
		t.Errorf("first statement = %q", conn.executed[0])
	}
	if conn.executed[1] != "ANALYZE reporting.orders" {
		t.Errorf("second statement = %q", conn.executed[1])
	}
}

func TestRunHooks_MissingFileFails(t *testing.T) {
	conn := &fakeConn{}
	cfg := &Config{configDir: t.TempDir()}
	err := runHooks(context.Background(), conn, cfg, []string{"nope.sql"}, "after_apply")
	if err == nil || !strings.Contains(err.Error(), "nope.sql") {
		t.Fatalf("expected missing-file error naming the hook, got %v", err)
	}
}

func TestRunHooks_StatementFailureNamesPhase(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("DROP VIEW reporting_v;"), 0o644); err != nil {
		t.Fatal(err)
	}
	conn := &fakeConn{failOn: "DROP VIEW"}
	cfg := &Config{configDir: dir}
	err := runHooks(context.Background(), conn, cfg, []string{"bad.sql"}, "before_apply")
	if err == nil || !strings.Contains(err.Error(), "before_apply") {
		t.Fatalf("expected phase-labelled error, got %v", err)
	}
}
