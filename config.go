package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds the full TOML-driven configuration.
type Config struct {
	Target         TargetConfig `toml:"target"`
	SchemaFile     string       `toml:"schema_file"`
	MigrationsDir  string       `toml:"migrations_dir"`
	MigrationName  string       `toml:"migration_name"`
	OnIrreversible string       `toml:"on_irreversible"` // warn|error
	EnvFile        string       `toml:"env_file"`
	Hooks          HooksConfig  `toml:"hooks"`
	Index          IndexConfig  `toml:"index"`

	// configDir is the directory containing the TOML file, used to resolve
	// relative paths.
	configDir string
}

// TargetConfig identifies the database being migrated.
type TargetConfig struct {
	Dialect string `toml:"dialect"` // postgresql, mysql, or sqlite
	DSN     string `toml:"dsn"`
	Schema  string `toml:"schema"` // PG schema / MySQL database name
}

type HooksConfig struct {
	BeforeApply []string `toml:"before_apply"`
	AfterApply  []string `toml:"after_apply"`
}

// IndexConfig configures the recommendation engine.
type IndexConfig struct {
	DefaultWorkload string `toml:"default_workload"`
}

// loadConfig reads a TOML config file and returns a Config with defaults
// applied and DSN environment references expanded.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{
		MigrationName:  "auto_migration",
		OnIrreversible: "warn",
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	// Optional .env before DSN expansion; an explicit env_file must exist.
	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.resolvePath(cfg.EnvFile)); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		godotenv.Load(filepath.Join(cfg.configDir, ".env"))
	}
	cfg.Target.DSN = os.ExpandEnv(cfg.Target.DSN)

	switch cfg.OnIrreversible {
	case "warn", "error":
	default:
		return nil, fmt.Errorf("on_irreversible must be one of: warn, error")
	}

	if cfg.Target.Dialect == "" {
		return nil, fmt.Errorf("target.dialect is required (must be postgresql, mysql, or sqlite)")
	}
	if _, err := newDialect(cfg.Target.Dialect); err != nil {
		return nil, err
	}
	if cfg.Target.DSN == "" {
		return nil, fmt.Errorf("target.dsn is required")
	}

	switch cfg.Target.Dialect {
	case "postgresql", "postgres":
		if cfg.Target.Schema == "" {
			cfg.Target.Schema = "public"
		}
	case "mysql":
		if cfg.Target.Schema == "" {
			name, err := extractMySQLDBName(cfg.Target.DSN)
			if err != nil {
				return nil, fmt.Errorf("target.schema is required for mysql: %w", err)
			}
			cfg.Target.Schema = name
		}
	case "sqlite":
		if cfg.Target.Schema != "" {
			return nil, fmt.Errorf("target.schema is a postgresql/mysql-only option")
		}
	}

	return &cfg, nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *Config) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// extractMySQLDBName pulls the database name from a MySQL DSN.
// Expects format: user:pass@tcp(host:port)/dbname or user:pass@host:port/dbname
func extractMySQLDBName(dsn string) (string, error) {
	paramIdx := len(dsn)
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		paramIdx = i
	}
	slashIdx := strings.LastIndexByte(dsn[:paramIdx], '/')
	if slashIdx < 0 {
		return "", fmt.Errorf("cannot extract database name from DSN: no '/' found")
	}
	dbName := dsn[slashIdx+1 : paramIdx]
	if dbName == "" {
		return "", fmt.Errorf("cannot extract database name from DSN: empty name")
	}
	return dbName, nil
}
