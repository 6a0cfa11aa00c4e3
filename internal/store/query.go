package store

import (
	"context"
	"database/sql"

	"github.com/fieldcone/controller/internal/domain"
)

// DashboardStats summarizes controller activity for the facade's status
// endpoints (spec §4.B dashboard_stats).
type DashboardStats struct {
	TotalSessions     int
	CompletedSessions int
	TotalRuns         int
	CompletedRuns     int
	ActiveSessionID   string
}

// DashboardStats returns aggregate counts for the operator dashboard.
func (s *Store) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&stats.TotalSessions); err != nil {
		return stats, classify(err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE status = ?`, string(domain.SessionCompleted)).
		Scan(&stats.CompletedSessions); err != nil {
		return stats, classify(err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&stats.TotalRuns); err != nil {
		return stats, classify(err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = ?`, string(domain.RunCompleted)).
		Scan(&stats.CompletedRuns); err != nil {
		return stats, classify(err)
	}
	if active, err := s.GetActiveSession(ctx); err == nil && active != nil {
		stats.ActiveSessionID = active.ID
	}
	return stats, nil
}

// RecentActivity is one row of the recent-completions feed.
type RecentActivity struct {
	RunID       string
	AthleteName string
	TotalTime   float64
	CompletedAt string
}

// RecentActivity returns the most recently completed runs, newest first.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]RecentActivity, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, athlete_name, total_time, completed_at FROM runs
		WHERE status = ? AND completed_at IS NOT NULL
		ORDER BY completed_at DESC LIMIT ?`, string(domain.RunCompleted), limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []RecentActivity
	for rows.Next() {
		var r RecentActivity
		var totalTime sql.NullFloat64
		if err := rows.Scan(&r.RunID, &r.AthleteName, &totalTime, &r.CompletedAt); err != nil {
			return nil, classify(err)
		}
		r.TotalTime = totalTime.Float64
		out = append(out, r)
	}
	return out, rows.Err()
}

// CourseRanking is one row of a course's all-time leaderboard.
type CourseRanking struct {
	AthleteName string
	BestTime    float64
	Attempts    int
}

// CourseRankings returns the best completed total_time per athlete for a
// course, ordered fastest-first (spec §4.B course_rankings).
func (s *Store) CourseRankings(ctx context.Context, courseID string, limit int) ([]CourseRanking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.athlete_name, MIN(r.total_time) AS best, COUNT(*) AS attempts
		FROM runs r
		JOIN sessions s ON s.id = r.session_id
		WHERE s.course_id = ? AND r.status = ?
		GROUP BY r.athlete_name
		ORDER BY best ASC
		LIMIT ?`, courseID, string(domain.RunCompleted), limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []CourseRanking
	for rows.Next() {
		var c CourseRanking
		if err := rows.Scan(&c.AthleteName, &c.BestTime, &c.Attempts); err != nil {
			return nil, classify(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecoverFromRestart implements spec §7's process-restart policy: any
// session left in 'active' status (because the in-memory active_runs map
// was lost) is marked 'incomplete' with a standard note, and every
// 'running' run belonging to it is marked 'incomplete' (runs carry no
// note). This guarantees
// invariant 4 (at most one running run in Sequential mode / exactly one
// active run in Pattern mode) after restart.
func (s *Store) RecoverFromRestart(ctx context.Context) error {
	const note = "System restart during active session"
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM sessions WHERE status = ?`, string(domain.SessionActive))
		if err != nil {
			return classify(err)
		}
		var sessionIDs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return classify(err)
			}
			sessionIDs = append(sessionIDs, id)
		}
		rows.Close()

		for _, sessionID := range sessionIDs {
			if _, err := tx.ExecContext(ctx, `
				UPDATE runs SET status = ? WHERE session_id = ? AND status = ?`,
				string(domain.RunIncomplete), sessionID, string(domain.RunRunning)); err != nil {
				return classify(err)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE sessions SET status = ?, notes = ? WHERE id = ?`,
				string(domain.SessionIncomplete), note, sessionID); err != nil {
				return classify(err)
			}
		}
		return nil
	})
}
