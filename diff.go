package main

import (
	"fmt"
	"sort"
	"strings"
)

// compareSchemas computes the structural diff between a current and a target
// schema. Pure function: no I/O, deterministic output (all buckets sorted by
// table name). compareSchemas(S, S) always yields a diff with no changes.
func compareSchemas(current, target map[string]TableDefinition) (*SchemaDiff, error) {
	if errs := validateSchema(current); len(errs) > 0 {
		return nil, fmt.Errorf("invalid current schema: %s", strings.Join(errs, "; "))
	}
	if errs := validateSchema(target); len(errs) > 0 {
		return nil, fmt.Errorf("invalid target schema: %s", strings.Join(errs, "; "))
	}

	diff := &SchemaDiff{}

	targetNames := sortedTableNames(target)
	currentNames := sortedTableNames(current)

	for _, name := range targetNames {
		if _, ok := current[name]; !ok {
			t := target[name]
			t.Name = name
			diff.TablesToCreate = append(diff.TablesToCreate, t)
		}
	}

	for _, name := range currentNames {
		if _, ok := target[name]; !ok {
			diff.TablesToDrop = append(diff.TablesToDrop, name)
		}
	}

	for _, name := range targetNames {
		cur, ok := current[name]
		if !ok {
			continue
		}
		tgt := target[name]
		cur.Name = name
		tgt.Name = name
		if !tablesEqual(cur, tgt) {
			diff.TablesToModify = append(diff.TablesToModify, TableChange{
				Name:    name,
				Current: cur,
				Target:  tgt,
			})
		}
	}

	return diff, nil
}

// tablesEqual compares two tables column-by-column, ignoring column order.
func tablesEqual(a, b TableDefinition) bool {
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	for _, ca := range a.Columns {
		cb, ok := b.column(ca.Name)
		if !ok || !ca.equal(cb) {
			return false
		}
	}
	return true
}

func sortedTableNames(schema map[string]TableDefinition) []string {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// columnDelta is the per-column breakdown of one TableChange, consumed by the
// generator to derive minimal operations.
type columnDelta struct {
	toAdd    []ColumnDefinition
	toModify [][2]ColumnDefinition // [current, target]
	toDrop   []ColumnDefinition
}

// diffColumns splits a table change into added, modified, and dropped
// columns. Added and modified follow the target's column order; dropped
// follows the current table's order.
func diffColumns(change TableChange) columnDelta {
	var d columnDelta
	for _, tc := range change.Target.Columns {
		cc, ok := change.Current.column(tc.Name)
		switch {
		case !ok:
			d.toAdd = append(d.toAdd, tc)
		case !cc.equal(tc):
			d.toModify = append(d.toModify, [2]ColumnDefinition{cc, tc})
		}
	}
	for _, cc := range change.Current.Columns {
		if _, ok := change.Target.column(cc.Name); !ok {
			d.toDrop = append(d.toDrop, cc)
		}
	}
	return d
}
