// Package migrations applies the gateway's database schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements run in order on every startup. Each is idempotent so Apply
// is safe to repeat.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS origin_audit (
		id          TEXT PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		origin      TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		reason      TEXT,
		method      TEXT,
		path        TEXT,
		remote_addr TEXT,
		user_agent  TEXT,
		trace_id    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS origin_audit_recorded_at_idx ON origin_audit (recorded_at)`,
	`CREATE INDEX IF NOT EXISTS origin_audit_origin_idx ON origin_audit (origin)`,
}

// Apply executes the schema statements in order, stopping at the first
// failure.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
