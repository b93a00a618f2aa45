package audit

import (
	"database/sql"
	"fmt"
)

// PostgresSink persists entries in the origin_audit table.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Write(entry Entry) error {
	_, err := s.db.Exec(`
		INSERT INTO origin_audit
			(id, recorded_at, origin, outcome, reason, method, path, remote_addr, user_agent, trace_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID,
		entry.Time,
		entry.Origin,
		entry.Outcome,
		entry.Reason,
		entry.Method,
		entry.Path,
		entry.RemoteAddr,
		entry.UserAgent,
		entry.TraceID,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
