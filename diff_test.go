package main

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string { return &s }

func usersTable() TableDefinition {
	return TableDefinition{
		Name: "users",
		Columns: []ColumnDefinition{
			{Name: "id", Type: TypeInteger, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: TypeVarchar, MaxLength: 100, Nullable: true},
			{Name: "email", Type: TypeVarchar, MaxLength: 150, Nullable: true},
		},
	}
}

func productsTable() TableDefinition {
	return TableDefinition{
		Name: "products",
		Columns: []ColumnDefinition{
			{Name: "id", Type: TypeInteger, PrimaryKey: true, AutoIncrement: true},
			{Name: "title", Type: TypeVarchar, MaxLength: 200},
			{Name: "price", Type: TypeDecimal},
		},
	}
}

func TestCompareSchemas_SelfDiffHasNoChanges(t *testing.T) {
	schema := map[string]TableDefinition{
		"users":    usersTable(),
		"products": productsTable(),
	}

	diff, err := compareSchemas(schema, schema)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}
	if diff.HasChanges() {
		t.Errorf("self-diff should have no changes, got %+v", diff)
	}
	if diff.ChangeCount() != 0 {
		t.Errorf("self-diff ChangeCount() = %d, want 0", diff.ChangeCount())
	}
}

func TestCompareSchemas_NewTable(t *testing.T) {
	current := map[string]TableDefinition{"users": usersTable()}
	target := map[string]TableDefinition{"users": usersTable(), "products": productsTable()}

	diff, err := compareSchemas(current, target)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}
	if len(diff.TablesToCreate) != 1 || diff.TablesToCreate[0].Name != "products" {
		t.Fatalf("TablesToCreate = %+v, want exactly products", diff.TablesToCreate)
	}
	if len(diff.TablesToDrop) != 0 || len(diff.TablesToModify) != 0 {
		t.Errorf("unexpected drops/modifies: %+v", diff)
	}
}

func TestCompareSchemas_DroppedTablesSorted(t *testing.T) {
	current := map[string]TableDefinition{
		"users":   usersTable(),
		"zebra":   {Name: "zebra", Columns: []ColumnDefinition{{Name: "id", Type: TypeInteger}}},
		"archive": {Name: "archive", Columns: []ColumnDefinition{{Name: "id", Type: TypeInteger}}},
		"metrics": {Name: "metrics", Columns: []ColumnDefinition{{Name: "id", Type: TypeInteger}}},
	}
	target := map[string]TableDefinition{"users": usersTable()}

	diff, err := compareSchemas(current, target)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}
	want := []string{"archive", "metrics", "zebra"}
	if d := cmp.Diff(want, diff.TablesToDrop); d != "" {
		t.Errorf("TablesToDrop mismatch (-want +got):\n%s", d)
	}
}

func TestCompareSchemas_ModifyDetection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TableDefinition)
	}{
		{"type change", func(td *TableDefinition) { td.Columns[1].Type = TypeText; td.Columns[1].MaxLength = 0 }},
		{"nullability change", func(td *TableDefinition) { td.Columns[2].Nullable = false }},
		{"default change", func(td *TableDefinition) { td.Columns[2].Default = strPtr("''") }},
		{"max length change", func(td *TableDefinition) { td.Columns[1].MaxLength = 255 }},
		{"added column", func(td *TableDefinition) {
			td.Columns = append(td.Columns, ColumnDefinition{Name: "created_at", Type: TypeTimestamp})
		}},
		{"removed column", func(td *TableDefinition) { td.Columns = td.Columns[:2] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := map[string]TableDefinition{"users": usersTable()}
			modified := usersTable()
			tt.mutate(&modified)
			target := map[string]TableDefinition{"users": modified}

			diff, err := compareSchemas(current, target)
			if err != nil {
				t.Fatalf("compareSchemas() error: %v", err)
			}
			if len(diff.TablesToModify) != 1 || diff.TablesToModify[0].Name != "users" {
				t.Fatalf("TablesToModify = %+v, want users", diff.TablesToModify)
			}
			if len(diff.TablesToCreate) != 0 || len(diff.TablesToDrop) != 0 {
				t.Errorf("table must appear in exactly one bucket: %+v", diff)
			}
		})
	}
}

func TestCompareSchemas_ColumnOrderIgnored(t *testing.T) {
	reordered := usersTable()
	reordered.Columns[1], reordered.Columns[2] = reordered.Columns[2], reordered.Columns[1]

	diff, err := compareSchemas(
		map[string]TableDefinition{"users": usersTable()},
		map[string]TableDefinition{"users": reordered},
	)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}
	if diff.HasChanges() {
		t.Errorf("column order must not affect the diff, got %+v", diff)
	}
}

func TestCompareSchemas_MalformedDefinitionFailsFast(t *testing.T) {
	bad := map[string]TableDefinition{
		"users": {Name: "users", Columns: []ColumnDefinition{{Name: "id"}}}, // no type
	}
	good := map[string]TableDefinition{"users": usersTable()}

	if _, err := compareSchemas(bad, good); err == nil {
		t.Fatal("expected validation error for column with no type (current side)")
	}
	if _, err := compareSchemas(good, bad); err == nil {
		t.Fatal("expected validation error for column with no type (target side)")
	}
	_, err := compareSchemas(good, bad)
	if !strings.Contains(err.Error(), "no type") {
		t.Errorf("error should name the missing type, got: %v", err)
	}
}

func TestDiffColumns_UsersScenario(t *testing.T) {
	current := usersTable()
	target := usersTable()
	target.Columns[2].Nullable = false // email NOT NULL
	target.Columns = append(target.Columns, ColumnDefinition{
		Name: "created_at", Type: TypeTimestamp, Default: strPtr("CURRENT_TIMESTAMP"),
	})

	delta := diffColumns(TableChange{Name: "users", Current: current, Target: target})
	if len(delta.toAdd) != 1 || delta.toAdd[0].Name != "created_at" {
		t.Errorf("toAdd = %+v, want created_at", delta.toAdd)
	}
	if len(delta.toModify) != 1 || delta.toModify[0][1].Name != "email" {
		t.Errorf("toModify = %+v, want email", delta.toModify)
	}
	if len(delta.toDrop) != 0 {
		t.Errorf("toDrop = %+v, want none", delta.toDrop)
	}
}
