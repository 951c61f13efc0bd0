package main

import (
	"context"
	"fmt"
	"strings"
)

// inspectSchema reads the live database's structural metadata into the
// in-memory schema model. Unknown native types fail the inspection; the
// inspector never guesses.
func inspectSchema(ctx context.Context, conn dbConn, d dialect, schemaName string) (map[string]TableDefinition, error) {
	switch d.Name() {
	case "postgresql":
		return inspectPostgresSchema(ctx, conn, schemaName)
	case "mysql":
		return inspectMySQLSchema(ctx, conn, schemaName)
	case "sqlite":
		return inspectSQLiteSchema(ctx, conn)
	}
	return nil, fmt.Errorf("inspection not supported for dialect %q", d.Name())
}

// listExistingIndexes collects the names of non-primary indexes currently
// present, for the recommendation engine's redundancy pass.
func listExistingIndexes(ctx context.Context, conn dbConn, d dialect, schemaName string) ([]string, error) {
	var names []string
	collect := func(r scanRow) error {
		var n string
		if err := r.Scan(&n); err != nil {
			return err
		}
		names = append(names, n)
		return nil
	}

	// Primary-key indexes and the tool's own ledger tables are excluded
	// everywhere: they are not candidates for the redundancy pass.
	switch d.Name() {
	case "postgresql":
		err := conn.QueryRows(ctx,
			`SELECT indexname FROM pg_indexes
			 WHERE schemaname = $1
			   AND indexname NOT LIKE '%_pkey'
			   AND tablename NOT LIKE 'schemaforge_%'
			 ORDER BY indexname`,
			[]any{schemaName}, collect)
		if err != nil {
			return nil, fmt.Errorf("list postgres indexes: %w", err)
		}
	case "mysql":
		err := conn.QueryRows(ctx,
			`SELECT DISTINCT INDEX_NAME FROM INFORMATION_SCHEMA.STATISTICS
			 WHERE TABLE_SCHEMA = ? AND INDEX_NAME <> 'PRIMARY'
			   AND TABLE_NAME NOT LIKE 'schemaforge\_%'
			 ORDER BY INDEX_NAME`,
			[]any{schemaName}, collect)
		if err != nil {
			return nil, fmt.Errorf("list mysql indexes: %w", err)
		}
	case "sqlite":
		err := conn.QueryRows(ctx,
			`SELECT name FROM sqlite_master
			 WHERE type = 'index' AND name NOT LIKE 'sqlite_%'
			   AND tbl_name NOT LIKE 'schemaforge_%'
			 ORDER BY name`,
			nil, collect)
		if err != nil {
			return nil, fmt.Errorf("list sqlite indexes: %w", err)
		}
	}
	return names, nil
}

// --- PostgreSQL ---

func inspectPostgresSchema(ctx context.Context, conn dbConn, schemaName string) (map[string]TableDefinition, error) {
	tables := make(map[string]TableDefinition)

	err := conn.QueryRows(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = $1 AND table_type = 'BASE TABLE' AND table_name NOT LIKE 'schemaforge_%'
		 ORDER BY table_name`,
		[]any{schemaName}, func(r scanRow) error {
			var name string
			if err := r.Scan(&name); err != nil {
				return err
			}
			tables[name] = TableDefinition{Name: name}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	pks := make(map[string]string) // table -> pk column
	err = conn.QueryRows(ctx,
		`SELECT tc.table_name, kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		 WHERE tc.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'`,
		[]any{schemaName}, func(r scanRow) error {
			var table, col string
			if err := r.Scan(&table, &col); err != nil {
				return err
			}
			pks[table] = col
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("introspect primary keys: %w", err)
	}

	err = conn.QueryRows(ctx,
		`SELECT table_name, column_name, data_type, is_nullable,
		        COALESCE(column_default, ''), COALESCE(character_maximum_length, 0)
		 FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name NOT LIKE 'schemaforge_%'
		 ORDER BY table_name, ordinal_position`,
		[]any{schemaName}, func(r scanRow) error {
			var table, colName, dataType, nullable, dflt string
			var maxLen int
			if err := r.Scan(&table, &colName, &dataType, &nullable, &dflt, &maxLen); err != nil {
				return err
			}
			t, ok := tables[table]
			if !ok {
				return nil
			}
			semType, err := postgresSemanticType(dataType)
			if err != nil {
				return fmt.Errorf("table %s column %s: %w", table, colName, err)
			}
			col := ColumnDefinition{
				Name:       colName,
				Type:       semType,
				Nullable:   nullable == "YES",
				MaxLength:  maxLen,
				PrimaryKey: pks[table] == colName,
			}
			if strings.HasPrefix(dflt, "nextval(") {
				col.AutoIncrement = true
			} else if norm := normalizePostgresDefault(dflt); norm != "" && !strings.EqualFold(norm, "NULL") {
				col.Default = &norm
			}
			t.Columns = append(t.Columns, col)
			tables[table] = t
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}

	return tables, nil
}

// normalizePostgresDefault strips the cast suffix the catalog appends to
// column defaults ('active'::character varying becomes 'active') so
// introspected defaults compare equal to the literals schema files carry.
func normalizePostgresDefault(dflt string) string {
	inQuote := false
	for i := 0; i+1 < len(dflt); i++ {
		switch {
		case dflt[i] == '\'':
			inQuote = !inQuote
		case !inQuote && dflt[i] == ':' && dflt[i+1] == ':':
			return strings.TrimSpace(dflt[:i])
		}
	}
	return strings.TrimSpace(dflt)
}

func postgresSemanticType(dataType string) (ColumnType, error) {
	switch strings.ToLower(dataType) {
	case "integer", "smallint":
		return TypeInteger, nil
	case "bigint":
		return TypeBigInt, nil
	case "character varying", "character":
		return TypeVarchar, nil
	case "text":
		return TypeText, nil
	case "timestamp without time zone", "timestamp with time zone":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "numeric":
		return TypeDecimal, nil
	case "boolean":
		return TypeBoolean, nil
	case "double precision", "real":
		return TypeFloat, nil
	case "json", "jsonb":
		return TypeJSON, nil
	case "bytea":
		return TypeBlob, nil
	}
	return "", fmt.Errorf("unmapped postgres type %q", dataType)
}

// --- MySQL ---

func inspectMySQLSchema(ctx context.Context, conn dbConn, dbName string) (map[string]TableDefinition, error) {
	tables := make(map[string]TableDefinition)

	err := conn.QueryRows(ctx,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' AND TABLE_NAME NOT LIKE 'schemaforge\_%'
		 ORDER BY TABLE_NAME`,
		[]any{dbName}, func(r scanRow) error {
			var name string
			if err := r.Scan(&name); err != nil {
				return err
			}
			tables[name] = TableDefinition{Name: name}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	err = conn.QueryRows(ctx,
		`SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE,
		        COALESCE(COLUMN_DEFAULT, ''), COALESCE(CHARACTER_MAXIMUM_LENGTH, 0),
		        COLUMN_KEY, EXTRA
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME NOT LIKE 'schemaforge\_%'
		 ORDER BY TABLE_NAME, ORDINAL_POSITION`,
		[]any{dbName}, func(r scanRow) error {
			var table, colName, dataType, nullable, dflt, columnKey, extra string
			var maxLen int
			if err := r.Scan(&table, &colName, &dataType, &nullable, &dflt, &maxLen, &columnKey, &extra); err != nil {
				return err
			}
			t, ok := tables[table]
			if !ok {
				return nil
			}
			semType, err := mysqlSemanticType(dataType)
			if err != nil {
				return fmt.Errorf("table %s column %s: %w", table, colName, err)
			}
			col := ColumnDefinition{
				Name:          colName,
				Type:          semType,
				Nullable:      nullable == "YES",
				MaxLength:     maxLen,
				PrimaryKey:    columnKey == "PRI",
				AutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
			}
			if dflt != "" {
				norm := normalizeMySQLDefault(semType, dflt)
				col.Default = &norm
			}
			t.Columns = append(t.Columns, col)
			tables[table] = t
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}

	return tables, nil
}

// normalizeMySQLDefault re-quotes string defaults: INFORMATION_SCHEMA
// reports DEFAULT 'active' as the bare word active, while rendered DDL needs
// the quoted literal back. Expression defaults pass through untouched.
func normalizeMySQLDefault(t ColumnType, dflt string) string {
	if dflt == "" || strings.HasPrefix(dflt, "'") {
		return dflt
	}
	switch t {
	case TypeVarchar, TypeText, TypeDate, TypeTimestamp, TypeJSON:
		upper := strings.ToUpper(dflt)
		if strings.HasPrefix(upper, "CURRENT_TIMESTAMP") || strings.HasSuffix(upper, ")") {
			return dflt
		}
		return "'" + strings.ReplaceAll(dflt, "'", "''") + "'"
	}
	return dflt
}

func mysqlSemanticType(dataType string) (ColumnType, error) {
	switch strings.ToLower(dataType) {
	case "int", "mediumint", "smallint":
		return TypeInteger, nil
	case "bigint":
		return TypeBigInt, nil
	case "varchar", "char":
		return TypeVarchar, nil
	case "text", "mediumtext", "longtext":
		return TypeText, nil
	case "datetime", "timestamp":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "decimal":
		return TypeDecimal, nil
	case "tinyint":
		// tinyint(1) is the conventional MySQL boolean.
		return TypeBoolean, nil
	case "double", "float":
		return TypeFloat, nil
	case "json":
		return TypeJSON, nil
	case "blob", "mediumblob", "longblob", "binary", "varbinary":
		return TypeBlob, nil
	}
	return "", fmt.Errorf("unmapped mysql type %q", dataType)
}

// --- SQLite ---

func inspectSQLiteSchema(ctx context.Context, conn dbConn) (map[string]TableDefinition, error) {
	var names []string
	err := conn.QueryRows(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE 'schemaforge_%'
		 ORDER BY name`,
		nil, func(r scanRow) error {
			var n string
			if err := r.Scan(&n); err != nil {
				return err
			}
			names = append(names, n)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	tables := make(map[string]TableDefinition, len(names))
	for _, name := range names {
		t := TableDefinition{Name: name}
		quoted := strings.ReplaceAll(name, `"`, `""`)
		err := conn.QueryRows(ctx,
			fmt.Sprintf(`PRAGMA table_info("%s")`, quoted),
			nil, func(r scanRow) error {
				var cid, notnull, pk int
				var colName, colType string
				var dflt *string
				if err := r.Scan(&cid, &colName, &colType, &notnull, &dflt, &pk); err != nil {
					return err
				}
				semType, maxLen, err := sqliteSemanticType(colType)
				if err != nil {
					return fmt.Errorf("table %s column %s: %w", name, colName, err)
				}
				col := ColumnDefinition{
					Name:       colName,
					Type:       semType,
					Nullable:   notnull == 0 && pk == 0,
					MaxLength:  maxLen,
					PrimaryKey: pk == 1,
					Default:    dflt,
				}
				// INTEGER PRIMARY KEY is a rowid alias; treat it as the
				// auto-increment column the model expects.
				if col.PrimaryKey && semType == TypeInteger {
					col.AutoIncrement = true
				}
				t.Columns = append(t.Columns, col)
				return nil
			})
		if err != nil {
			return nil, fmt.Errorf("introspect columns for %s: %w", name, err)
		}
		tables[name] = t
	}

	return tables, nil
}

// sqliteSemanticType maps a declared SQLite type back to the semantic model,
// parsing VARCHAR(n) lengths from the declaration.
func sqliteSemanticType(colType string) (ColumnType, int, error) {
	upper := strings.ToUpper(strings.TrimSpace(colType))
	if strings.HasPrefix(upper, "VARCHAR") {
		maxLen := 0
		if open := strings.IndexByte(upper, '('); open >= 0 {
			if close := strings.IndexByte(upper, ')'); close > open {
				fmt.Sscanf(upper[open+1:close], "%d", &maxLen)
			}
		}
		return TypeVarchar, maxLen, nil
	}
	if strings.HasPrefix(upper, "DECIMAL") || upper == "NUMERIC" {
		return TypeDecimal, 0, nil
	}
	switch upper {
	case "INTEGER", "INT":
		return TypeInteger, 0, nil
	case "BIGINT":
		return TypeBigInt, 0, nil
	case "TEXT", "CLOB":
		return TypeText, 0, nil
	case "TIMESTAMP", "DATETIME":
		return TypeTimestamp, 0, nil
	case "DATE":
		return TypeDate, 0, nil
	case "REAL", "DOUBLE", "FLOAT":
		return TypeFloat, 0, nil
	case "BOOLEAN":
		return TypeBoolean, 0, nil
	case "JSON":
		return TypeJSON, 0, nil
	case "BLOB", "":
		return TypeBlob, 0, nil
	}
	return "", 0, fmt.Errorf("unmapped sqlite type %q", colType)
}
