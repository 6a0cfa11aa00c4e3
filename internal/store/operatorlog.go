package store

import (
	"context"
	"database/sql"
	"time"
)

// OperatorLogEntry is a persisted operator-log record (spec §6.3). The
// facade serves `registry.logs(limit)` from these stored entries, so they
// survive restarts; the in-memory ring in internal/log does not capture
// them.
type OperatorLogEntry struct {
	Timestamp time.Time
	Level     string
	Source    string
	NodeID    string
	Message   string
}

// AppendOperatorLog persists one operator-log entry.
func (s *Store) AppendOperatorLog(ctx context.Context, e OperatorLogEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO operator_log (timestamp, level, source, node_id, message)
			VALUES (?, ?, ?, ?, ?)`,
			e.Timestamp.UTC().Format(time.RFC3339Nano), e.Level, e.Source, e.NodeID, e.Message,
		)
		return classify(err)
	})
}

// RecentOperatorLog returns up to limit most recent entries, newest first.
func (s *Store) RecentOperatorLog(ctx context.Context, limit int) ([]OperatorLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, level, source, node_id, message FROM operator_log
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []OperatorLogEntry
	for rows.Next() {
		var e OperatorLogEntry
		var ts string
		var nodeID sql.NullString
		if err := rows.Scan(&ts, &e.Level, &e.Source, &nodeID, &e.Message); err != nil {
			return nil, classify(err)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, err
		}
		e.Timestamp = t
		e.NodeID = nodeID.String
		out = append(out, e)
	}
	return out, rows.Err()
}
