package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// writeMigrationFile serializes a generated migration definition to the
// migrations directory as one TOML file, so pending changes can go through
// version-control review before anyone applies them.
func writeMigrationFile(dir string, m *Migration) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.toml", m.Version, m.Name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create migration file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return "", fmt.Errorf("encode migration %s: %w", m.Version, err)
	}
	return path, nil
}

// readMigrationFile loads a serialized migration definition back from disk.
func readMigrationFile(path string) (*Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read migration file: %w", err)
	}
	var m Migration
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("parse migration file %s: %w", path, err)
	}
	return &m, nil
}
