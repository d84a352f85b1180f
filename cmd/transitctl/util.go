package main

import "github.com/atanasr/transit-raptor/internal/config"

// resolveDBPath prefers the --db flag over the config-derived default, so
// operators can point the CLI at a database distinct from the running
// server's without touching the environment.
func resolveDBPath(cfg *config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.DatabasePath
}
