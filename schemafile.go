package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk target-schema document. Tables are a list so
// that declaration order is preserved for generated DDL.
type schemaFile struct {
	Tables []TableDefinition `toml:"tables" yaml:"tables"`
}

// loadTargetSchema reads a target schema from a TOML or YAML file, selected
// by extension, and validates every definition fail-fast.
func loadTargetSchema(path string) (map[string]TableDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var doc schemaFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("parse schema file: %w", err)
		}
		if unknown := md.Undecoded(); len(unknown) > 0 {
			keys := make([]string, len(unknown))
			for i, k := range unknown {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown schema file keys: %s", strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse schema file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported schema file extension %q (must be .toml, .yaml, or .yml)", ext)
	}

	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("schema file defines no tables")
	}

	schema := make(map[string]TableDefinition, len(doc.Tables))
	for _, t := range doc.Tables {
		if _, ok := schema[t.Name]; ok {
			return nil, fmt.Errorf("duplicate table %s in schema file", t.Name)
		}
		schema[t.Name] = t
	}

	if errs := validateSchema(schema); len(errs) > 0 {
		return nil, fmt.Errorf("invalid schema file: %s", strings.Join(errs, "; "))
	}
	return schema, nil
}
