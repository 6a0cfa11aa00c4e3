package store

import (
	"context"
	"database/sql"
)

// DeleteSession removes a session; ON DELETE CASCADE on runs and segments
// ensures no orphans remain (spec invariant 2).
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		return classify(err)
	})
}
