package store

import (
	"context"
	"database/sql"

	"github.com/fieldcone/controller/internal/domain"
)

// CreateTeam persists a new team. Team/Athlete/Course CRUD is a thin
// surface here: the full roster management UI (CSV import, photos) is out
// of scope per spec §1, but the Store still owns the canonical records the
// Session Engine and facade read.
func (s *Store) CreateTeam(ctx context.Context, t domain.Team) (string, error) {
	id := s.uuidFn()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, name, age_group, sport, coach, active)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, t.Name, t.AgeGroup, t.Sport, t.Coach, boolToInt(t.Active),
		)
		return classify(err)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateAthlete persists a new athlete under a team.
func (s *Store) CreateAthlete(ctx context.Context, a domain.Athlete) (string, error) {
	id := s.uuidFn()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO athletes (id, team_id, name, jersey, age, position, deleted)
			VALUES (?, ?, ?, ?, ?, ?, 0)`,
			id, a.TeamID, a.Name, a.Jersey, a.Age, a.Position,
		)
		return classify(err)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListAthletes returns the non-deleted athletes on a team.
func (s *Store) ListAthletes(ctx context.Context, teamID string) ([]domain.Athlete, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, name, jersey, age, position FROM athletes
		WHERE team_id = ? AND deleted = 0`, teamID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.Athlete
	for rows.Next() {
		var a domain.Athlete
		if err := rows.Scan(&a.ID, &a.TeamID, &a.Name, &a.Jersey, &a.Age, &a.Position); err != nil {
			return nil, classify(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
