package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfigDefaults tests the default configuration.
func TestNewConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	if cfg.Backend != BackendSQLite {
		t.Errorf("default backend = %q, want %q", cfg.Backend, BackendSQLite)
	}
	if cfg.DataDir == "" {
		t.Error("default data directory should not be empty")
	}
	if cfg.Postgres.MinConns != DefaultMinConns || cfg.Postgres.MaxConns != DefaultMaxConns {
		t.Errorf("default pool bounds = %d/%d, want %d/%d",
			cfg.Postgres.MinConns, cfg.Postgres.MaxConns, DefaultMinConns, DefaultMaxConns)
	}
	if !cfg.Dedup.EnableNearDuplicates {
		t.Error("near-duplicate detection should default to enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}
}

// TestValidate tests configuration validation.
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Backend = "mysql" },
			wantErr: ErrUnknownBackend,
		},
		{
			name:    "sqlite without data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrMissingDataDir,
		},
		{
			name:    "postgres without DSN",
			mutate:  func(c *Config) { c.Backend = BackendPostgres },
			wantErr: ErrMissingDSN,
		},
		{
			name: "postgres with inverted pool bounds",
			mutate: func(c *Config) {
				c.Backend = BackendPostgres
				c.Postgres.DSN = "postgres://user:pw@localhost/corpus"
				c.Postgres.MinConns = 20
			},
			wantErr: ErrInvalidPoolBounds,
		},
		{
			name: "postgres with negative acquire timeout",
			mutate: func(c *Config) {
				c.Backend = BackendPostgres
				c.Postgres.DSN = "postgres://user:pw@localhost/corpus"
				c.Postgres.AcquireTimeout = -time.Second
			},
			wantErr: ErrInvalidAcquireTimeout,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Dedup.Threshold = 1.2 },
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "bands not dividing permutations",
			mutate:  func(c *Config) { c.Dedup.Bands = 24 },
			wantErr: ErrInvalidBands,
		},
		{
			name:    "zero shards",
			mutate:  func(c *Config) { c.Dedup.Shards = 0 },
			wantErr: ErrInvalidShards,
		},
		{
			name:    "zero shingle size",
			mutate:  func(c *Config) { c.Dedup.ShingleSize = 0 },
			wantErr: ErrInvalidShingleSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestLoadConfigFile tests YAML loading layered over defaults.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("LoadConfigFile() error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := "backend: postgres\npostgres:\n  dsn: postgres://user:pw@db.internal/corpus\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error: %v", err)
		}
		if cfg.Backend != BackendPostgres {
			t.Errorf("backend = %q, want %q", cfg.Backend, BackendPostgres)
		}
		if cfg.Postgres.DSN != "postgres://user:pw@db.internal/corpus" {
			t.Errorf("DSN not loaded: %q", cfg.Postgres.DSN)
		}
		// Unspecified fields keep their defaults.
		if cfg.Postgres.MaxConns != DefaultMaxConns {
			t.Errorf("MaxConns = %d, want default %d", cfg.Postgres.MaxConns, DefaultMaxConns)
		}
		if cfg.Dedup.Permutations != DefaultPermutations {
			t.Errorf("Permutations = %d, want default %d", cfg.Dedup.Permutations, DefaultPermutations)
		}
	})

	t.Run("malformed yaml returns an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("backend: [unclosed"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("LoadConfigFile() should fail on malformed YAML")
		}
	})
}
