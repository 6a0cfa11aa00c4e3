package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldcone/controller/internal/domain"
)

// CreateSession creates the session and one Run per athlete in
// athleteQueue, with queue_position = index. Atomic (spec §4.B).
func (s *Store) CreateSession(ctx context.Context, teamID, courseID string, athleteQueue []domain.Athlete, voice domain.AudioVoice, patternCfg *domain.PatternConfig) (string, error) {
	sessionID := s.uuidFn()
	now := s.clock.Now()

	var cfgJSON []byte
	if patternCfg != nil {
		b, err := json.Marshal(patternCfg)
		if err != nil {
			return "", fmt.Errorf("marshal pattern_config: %w", err)
		}
		cfgJSON = b
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, team_id, course_id, status, created_at, audio_voice, pattern_config)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, teamID, courseID, string(domain.SessionSetup), now.UTC().Format(time.RFC3339Nano), string(voice), cfgJSON,
		)
		if err != nil {
			return classify(err)
		}
		for i, ath := range athleteQueue {
			runID := s.uuidFn()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO runs (id, session_id, athlete_id, athlete_name, queue_position, status)
				VALUES (?, ?, ?, ?, ?, ?)`,
				runID, sessionID, ath.ID, ath.Name, i, string(domain.RunQueued),
			)
			if err != nil {
				return classify(err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// StartSession transitions a session from setup to active.
func (s *Store) StartSession(ctx context.Context, sessionID string) error {
	now := s.clock.Now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sessions SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
			string(domain.SessionActive), now.UTC().Format(time.RFC3339Nano), sessionID, string(domain.SessionSetup),
		)
		if err != nil {
			return classify(err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: session %s not in setup", ErrInvalidTransition, sessionID)
		}
		return nil
	})
}

// CompleteSession marks a session completed or incomplete with a note.
func (s *Store) CompleteSession(ctx context.Context, sessionID string, status domain.SessionStatus, notes string) error {
	now := s.clock.Now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE sessions SET status = ?, completed_at = ?, notes = ? WHERE id = ?`,
			string(status), now.UTC().Format(time.RFC3339Nano), notes, sessionID,
		)
		return classify(err)
	})
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, team_id, course_id, status, created_at, started_at, completed_at, audio_voice, pattern_config, notes
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetActiveSession returns a session in state setup or active, if any
// (spec §4.B get_active_session).
func (s *Store) GetActiveSession(ctx context.Context) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, team_id, course_id, status, created_at, started_at, completed_at, audio_voice, pattern_config, notes
		FROM sessions WHERE status IN (?, ?) ORDER BY created_at DESC LIMIT 1`,
		string(domain.SessionSetup), string(domain.SessionActive))
	sess, err := scanSession(row)
	if err == ErrNotFound {
		return nil, nil
	}
	return sess, err
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var sess domain.Session
	var status, createdAt, voice string
	var startedAt, completedAt, cfgJSON sql.NullString
	if err := row.Scan(&sess.ID, &sess.TeamID, &sess.CourseID, &status, &createdAt, &startedAt, &completedAt, &voice, &cfgJSON, &sess.Notes); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}
	sess.Status = domain.SessionStatus(status)
	sess.AudioVoice = domain.AudioVoice(voice)
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	sess.CreatedAt = t
	if st, err := parseNullTime(startedAt); err == nil {
		sess.StartedAt = st
	}
	if ct, err := parseNullTime(completedAt); err == nil {
		sess.CompletedAt = ct
	}
	if cfgJSON.Valid && cfgJSON.String != "" {
		var pc domain.PatternConfig
		if err := json.Unmarshal([]byte(cfgJSON.String), &pc); err == nil {
			sess.PatternConfig = &pc
		}
	}
	return &sess, nil
}

// ListRuns returns all runs for a session ordered by queue_position.
func (s *Store) ListRuns(ctx context.Context, sessionID string) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, athlete_id, athlete_name, queue_position, status, started_at, timer_start_at, completed_at, total_time
		FROM runs WHERE session_id = ? ORDER BY queue_position ASC`, sessionID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetNextQueuedRun returns the lowest-queue_position run still queued, or
// ErrNotFound if none remain.
func (s *Store) GetNextQueuedRun(ctx context.Context, sessionID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, athlete_id, athlete_name, queue_position, status, started_at, timer_start_at, completed_at, total_time
		FROM runs WHERE session_id = ? AND status = ? ORDER BY queue_position ASC LIMIT 1`,
		sessionID, string(domain.RunQueued))
	r, err := scanRunRowSingle(row)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRow(rows *sql.Rows) (domain.Run, error) {
	return scanRunGeneric(rows)
}

func scanRunRowSingle(row *sql.Row) (domain.Run, error) {
	return scanRunGeneric(row)
}

func scanRunGeneric(sc rowScanner) (domain.Run, error) {
	var r domain.Run
	var status string
	var startedAt, timerStartAt, completedAt sql.NullString
	var totalTime sql.NullFloat64
	if err := sc.Scan(&r.ID, &r.SessionID, &r.AthleteID, &r.AthleteName, &r.QueuePosition, &status,
		&startedAt, &timerStartAt, &completedAt, &totalTime); err != nil {
		if err == sql.ErrNoRows {
			return domain.Run{}, ErrNotFound
		}
		return domain.Run{}, classify(err)
	}
	r.Status = domain.RunStatus(status)
	if st, err := parseNullTime(startedAt); err == nil {
		r.StartedAt = st
	}
	if ts, err := parseNullTime(timerStartAt); err == nil {
		r.TimerStartAt = ts
	}
	if ct, err := parseNullTime(completedAt); err == nil {
		r.CompletedAt = ct
	}
	if totalTime.Valid {
		r.TotalTime = totalTime.Float64
	}
	return r, nil
}
