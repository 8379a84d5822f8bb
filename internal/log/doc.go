// Package log provides secure logging functionality with automatic
// sanitization of credentials, built on top of the standard slog package.
//
// The ledger's networked profile carries database credentials in its DSN,
// and pipeline workers routinely log configuration at startup. The
// SecureHandler makes sure a DSN attribute never reaches log output with
// its password intact, and masks token/secret-shaped attributes entirely.
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//	logger.Info("ledger opened",
//	    "dsn", cfg.Postgres.DSN, // password portion is masked
//	    "backend", cfg.Backend,
//	)
package log
