// Package config provides configuration structures and utilities for the
// corpus ledger. It defines the backend profile selection (embedded SQLite
// or networked PostgreSQL), connection-pool sizing, and the deduplication
// engine parameters, along with a YAML file loader.
//
// Design decision: Configuration is an explicit struct constructed once
// and passed into constructors. There is no ambient global configuration;
// concurrent pipeline workers each receive the same immutable value.
package config
