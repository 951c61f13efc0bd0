package main

import (
	"strings"
	"testing"
)

func mustDialect(t *testing.T, name string) dialect {
	t.Helper()
	d, err := newDialect(name)
	if err != nil {
		t.Fatalf("newDialect(%q) error: %v", name, err)
	}
	return d
}

func TestGenerateMigration_NewProductsTable(t *testing.T) {
	diff, err := compareSchemas(
		map[string]TableDefinition{"users": usersTable()},
		map[string]TableDefinition{"users": usersTable(), "products": productsTable()},
	)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}

	m, warnings, err := generateMigration(diff, "add_products", mustDialect(t, "postgresql"))
	if err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(m.Operations) != 1 {
		t.Fatalf("operations = %d, want 1", len(m.Operations))
	}

	op := m.Operations[0]
	if op.Type != OpCreateTable {
		t.Errorf("first operation type = %s, want CREATE_TABLE", op.Type)
	}
	if !strings.Contains(op.SQLUp, "CREATE TABLE products") {
		t.Errorf("sql_up should create products, got:\n%s", op.SQLUp)
	}
	if op.SQLDown != "DROP TABLE products" {
		t.Errorf("sql_down = %q, want DROP TABLE products", op.SQLDown)
	}
	if !op.Reversible {
		t.Error("CREATE_TABLE must be reversible")
	}
	if m.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", m.Status)
	}
}

func TestGenerateMigration_UsersScenario(t *testing.T) {
	current := usersTable()
	target := usersTable()
	target.Columns[2].Nullable = false
	target.Columns = append(target.Columns, ColumnDefinition{
		Name: "created_at", Type: TypeTimestamp, Default: strPtr("CURRENT_TIMESTAMP"),
	})

	diff, err := compareSchemas(
		map[string]TableDefinition{"users": current},
		map[string]TableDefinition{"users": target},
	)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}

	m, _, err := generateMigration(diff, "users_created_at", mustDialect(t, "postgresql"))
	if err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}
	if len(m.Operations) != 2 {
		t.Fatalf("operations = %d, want exactly ADD_COLUMN then MODIFY_COLUMN", len(m.Operations))
	}
	if m.Operations[0].Type != OpAddColumn {
		t.Errorf("operation 1 = %s, want ADD_COLUMN", m.Operations[0].Type)
	}
	if m.Operations[1].Type != OpModifyColumn {
		t.Errorf("operation 2 = %s, want MODIFY_COLUMN", m.Operations[1].Type)
	}
	if !strings.Contains(m.Operations[0].SQLDown, "DROP COLUMN created_at") {
		t.Errorf("ADD_COLUMN sql_down = %q, want DROP COLUMN created_at", m.Operations[0].SQLDown)
	}
	if !strings.Contains(m.Operations[1].SQLUp, "SET NOT NULL") {
		t.Errorf("MODIFY_COLUMN sql_up should SET NOT NULL, got %q", m.Operations[1].SQLUp)
	}
	if !strings.Contains(m.Operations[1].SQLDown, "DROP NOT NULL") {
		t.Errorf("MODIFY_COLUMN sql_down should DROP NOT NULL, got %q", m.Operations[1].SQLDown)
	}
}

func TestGenerateMigration_AddsBeforeModifiesBeforeDrops(t *testing.T) {
	current := usersTable()
	target := TableDefinition{
		Name: "users",
		Columns: []ColumnDefinition{
			{Name: "id", Type: TypeInteger, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: TypeVarchar, MaxLength: 200, Nullable: true}, // modified
			{Name: "nickname", Type: TypeVarchar, MaxLength: 50, Nullable: true}, // added; email dropped
		},
	}

	diff, err := compareSchemas(
		map[string]TableDefinition{"users": current},
		map[string]TableDefinition{"users": target},
	)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}

	m, _, err := generateMigration(diff, "reshape_users", mustDialect(t, "postgresql"))
	if err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}

	var order []OperationType
	for _, op := range m.Operations {
		order = append(order, op.Type)
	}
	want := []OperationType{OpAddColumn, OpModifyColumn, OpDropColumn}
	if len(order) != 3 {
		t.Fatalf("operation order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("operation order = %v, want %v", order, want)
		}
	}
}

func TestGenerateMigration_DropColumnWithKnownPriorDefinition(t *testing.T) {
	current := usersTable()
	target := usersTable()
	target.Columns = target.Columns[:2] // drop email

	diff, err := compareSchemas(
		map[string]TableDefinition{"users": current},
		map[string]TableDefinition{"users": target},
	)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}

	m, _, err := generateMigration(diff, "drop_email", mustDialect(t, "postgresql"))
	if err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}
	op := m.Operations[0]
	if op.Type != OpDropColumn {
		t.Fatalf("operation = %s, want DROP_COLUMN", op.Type)
	}
	if !op.Reversible {
		t.Error("DROP_COLUMN with known prior definition must be structurally reversible")
	}
	if !strings.Contains(op.SQLDown, "ADD COLUMN email") {
		t.Errorf("sql_down should recreate the column, got %q", op.SQLDown)
	}
	if !strings.Contains(op.Description, "not recoverable") {
		t.Errorf("description must document data loss, got %q", op.Description)
	}
}

func TestGenerateMigration_DropTableIrreversible(t *testing.T) {
	diff, err := compareSchemas(
		map[string]TableDefinition{"users": usersTable(), "products": productsTable()},
		map[string]TableDefinition{"users": usersTable()},
	)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}

	m, warnings, err := generateMigration(diff, "drop_products", mustDialect(t, "postgresql"))
	if err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("irreversible DROP_TABLE must surface a generation-time warning")
	}
	op := m.Operations[0]
	if op.Reversible {
		t.Error("DROP_TABLE must be irreversible when only the name is known")
	}
	if !strings.HasPrefix(op.SQLDown, "-- Cannot automatically recreate") {
		t.Errorf("irreversible sql_down must be the sentinel comment, got %q", op.SQLDown)
	}
	if m.CanRollback() {
		t.Error("a migration with an irreversible operation must not be rollbackable")
	}
}

func TestGenerateMigration_ReversibilityInvariant(t *testing.T) {
	current := map[string]TableDefinition{
		"users":    usersTable(),
		"obsolete": {Name: "obsolete", Columns: []ColumnDefinition{{Name: "id", Type: TypeInteger}}},
	}
	modified := usersTable()
	modified.Columns[1].MaxLength = 255
	target := map[string]TableDefinition{
		"users":    modified,
		"products": productsTable(),
	}

	diff, err := compareSchemas(current, target)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}

	for _, name := range []string{"postgresql", "mysql", "sqlite"} {
		m, _, err := generateMigration(diff, "invariant", mustDialect(t, name))
		if err != nil {
			t.Fatalf("generateMigration(%s) error: %v", name, err)
		}
		for _, op := range m.Operations {
			if op.SQLDown == "" {
				t.Errorf("%s: %s on %s has empty sql_down", name, op.Type, op.TableName)
			}
			if !op.Reversible && !strings.HasPrefix(op.SQLDown, "-- Cannot automatically recreate") {
				t.Errorf("%s: irreversible %s on %s must carry the sentinel, got %q", name, op.Type, op.TableName, op.SQLDown)
			}
			if op.Reversible && strings.HasPrefix(op.SQLDown, "--") {
				t.Errorf("%s: reversible %s on %s has comment sql_down %q", name, op.Type, op.TableName, op.SQLDown)
			}
		}
	}
}

func TestGenerateMigration_VersionsUniqueAndOrdered(t *testing.T) {
	diff, err := compareSchemas(
		map[string]TableDefinition{},
		map[string]TableDefinition{"users": usersTable()},
	)
	if err != nil {
		t.Fatal(err)
	}
	d := mustDialect(t, "sqlite")

	// Back-to-back generations land in the same second; each must still get
	// a distinct, strictly increasing version or the second apply would be
	// rejected as checksum drift.
	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 5; i++ {
		m, _, err := generateMigration(diff, "same_second", d)
		if err != nil {
			t.Fatalf("generateMigration() error: %v", err)
		}
		if seen[m.Version] {
			t.Fatalf("duplicate version %s", m.Version)
		}
		seen[m.Version] = true
		if prev != "" && m.Version <= prev {
			t.Fatalf("versions not increasing: %s after %s", m.Version, prev)
		}
		prev = m.Version
	}
}

func TestGenerateMigration_ChecksumDeterministic(t *testing.T) {
	diff, err := compareSchemas(
		map[string]TableDefinition{"users": usersTable()},
		map[string]TableDefinition{"users": usersTable(), "products": productsTable()},
	)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}

	d := mustDialect(t, "mysql")
	m1, _, err := generateMigration(diff, "same", d)
	if err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}
	m2, _, err := generateMigration(diff, "same", d)
	if err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}
	if m1.Checksum != m2.Checksum {
		t.Errorf("checksums differ across identical generations: %s vs %s", m1.Checksum, m2.Checksum)
	}
	if m1.Checksum == "" {
		t.Error("checksum must not be empty")
	}

	// Tampering with any operation's SQL must change the checksum.
	m2.Operations[0].SQLUp += " -- tampered"
	if migrationChecksum(m2.Operations) == m1.Checksum {
		t.Error("checksum must detect modified operation SQL")
	}
}

func TestGenerateMigration_SQLiteModifyFlagsLimitation(t *testing.T) {
	current := usersTable()
	target := usersTable()
	target.Columns[2].Nullable = false

	diff, err := compareSchemas(
		map[string]TableDefinition{"users": current},
		map[string]TableDefinition{"users": target},
	)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}

	m, warnings, err := generateMigration(diff, "sqlite_modify", mustDialect(t, "sqlite"))
	if err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("SQLite MODIFY_COLUMN must surface a generation-time warning")
	}
	op := m.Operations[0]
	if op.Metadata["limitation"] == "" {
		t.Errorf("SQLite MODIFY_COLUMN must be flagged in metadata, got %v", op.Metadata)
	}
}

func TestGenerateMigration_MySQLOpsFlaggedNonTransactional(t *testing.T) {
	diff, err := compareSchemas(
		map[string]TableDefinition{},
		map[string]TableDefinition{"products": productsTable()},
	)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}

	m, _, err := generateMigration(diff, "mysql_ddl", mustDialect(t, "mysql"))
	if err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}
	if m.Operations[0].Metadata["transactional"] != "false" {
		t.Errorf("MySQL DDL must be flagged non-transactional, got %v", m.Operations[0].Metadata)
	}
}

// applyDiffToModel replays a generated migration's intent onto an in-memory
// schema, using the diff as the source of definitions.
func applyDiffToModel(model map[string]TableDefinition, diff *SchemaDiff) map[string]TableDefinition {
	next := make(map[string]TableDefinition, len(model))
	for k, v := range model {
		next[k] = v
	}
	for _, t := range diff.TablesToCreate {
		next[t.Name] = t
	}
	for _, name := range diff.TablesToDrop {
		delete(next, name)
	}
	for _, change := range diff.TablesToModify {
		next[change.Name] = change.Target
	}
	return next
}

func TestGenerateMigration_Convergence(t *testing.T) {
	current := map[string]TableDefinition{
		"users":    usersTable(),
		"obsolete": {Name: "obsolete", Columns: []ColumnDefinition{{Name: "id", Type: TypeInteger}}},
	}
	modified := usersTable()
	modified.Columns = append(modified.Columns, ColumnDefinition{Name: "created_at", Type: TypeTimestamp})
	target := map[string]TableDefinition{
		"users":    modified,
		"products": productsTable(),
	}

	diff, err := compareSchemas(current, target)
	if err != nil {
		t.Fatalf("compareSchemas() error: %v", err)
	}
	if _, _, err := generateMigration(diff, "converge", mustDialect(t, "postgresql")); err != nil {
		t.Fatalf("generateMigration() error: %v", err)
	}

	applied := applyDiffToModel(current, diff)
	rediff, err := compareSchemas(applied, target)
	if err != nil {
		t.Fatalf("re-diff error: %v", err)
	}
	if rediff.HasChanges() {
		t.Errorf("applying the migration must converge on the target, residual diff: %+v", rediff)
	}
}
