package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations holds the ordered schema steps. The position in the slice plus
// one is the schema version recorded in PRAGMA user_version, so entries must
// only ever be appended.
var migrations = []string{
	`CREATE TABLE days (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		UNIQUE (date, owner_id)
	)`,
	`CREATE TABLE events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL CHECK (length(name) > 0 AND length(name) <= 50),
		owner_id TEXT NOT NULL,
		start_utc TEXT NOT NULL,
		end_utc TEXT NOT NULL CHECK (start_utc < end_utc),
		display_zone TEXT NOT NULL,
		description TEXT CHECK (description IS NULL OR length(description) <= 255),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE event_days (
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		day_id TEXT NOT NULL REFERENCES days(id) ON DELETE CASCADE,
		PRIMARY KEY (event_id, day_id)
	)`,
	`CREATE INDEX idx_events_owner_start ON events(owner_id, start_utc)`,
	`CREATE INDEX idx_event_days_day ON event_days(day_id)`,
}

// Migrate brings the schema up to the current version. It is idempotent and
// safe to run on every startup.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	return cp.WithTransaction(ctx, func(tx *sql.Tx) error {
		var version int
		if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			return fmt.Errorf("sqlite: read schema version: %w", err)
		}
		if version > len(migrations) {
			return fmt.Errorf("sqlite: database schema version %d is newer than this binary supports (%d)", version, len(migrations))
		}

		for i := version; i < len(migrations); i++ {
			if _, err := tx.Exec(migrations[i]); err != nil {
				return fmt.Errorf("sqlite: apply migration %d: %w", i+1, err)
			}
		}

		// PRAGMA does not accept bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
			return fmt.Errorf("sqlite: record schema version: %w", err)
		}
		return nil
	})
}
