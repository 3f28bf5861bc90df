// Package db provides schema management for the conflict engine's storage.
package db

import "fmt"

// schemaStatements creates the two durable collections. Entity snapshots are
// stored as JSON text columns; seq orders audit entries for eviction.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audit_trail (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		conflict_id TEXT NOT NULL CHECK(length(conflict_id) = 36),
		entity_id TEXT NOT NULL CHECK(length(entity_id) > 0),
		entity_type TEXT NOT NULL CHECK(length(entity_type) > 0),
		strategy TEXT NOT NULL CHECK(length(strategy) > 0),
		resolved_data TEXT,
		confidence REAL NOT NULL CHECK(confidence >= 0 AND confidence <= 1),
		requires_user_review INTEGER NOT NULL CHECK(requires_user_review IN (0, 1)),
		reasoning TEXT NOT NULL,
		local_data TEXT,
		server_data TEXT,
		user_id TEXT,
		applied_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_trail(entity_id);`,
	`CREATE TABLE IF NOT EXISTS pending_conflicts (
		conflict_id TEXT PRIMARY KEY CHECK(length(conflict_id) = 36),
		record TEXT NOT NULL,
		reasoning TEXT,
		stored_at INTEGER NOT NULL
	);`,
}

// initSchema creates the tables and indexes if they do not exist.
func (db *DB) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
