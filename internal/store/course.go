package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fieldcone/controller/internal/domain"
)

// CreateCourse validates actions[].Sequence is dense from 0 and unique,
// then persists the course and its actions atomically. Fails with
// ErrAlreadyExists if name collides (spec §4.B).
func (s *Store) CreateCourse(ctx context.Context, c domain.Course) (string, error) {
	if err := validateActionSequence(c.Actions); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}

	id := s.uuidFn()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO courses (id, name, description, type, mode, category, total_devices)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, c.Name, c.Description, c.Type, string(c.Mode), c.Category, c.TotalDevices,
		)
		if err != nil {
			return classify(err)
		}
		return insertActions(ctx, tx, id, c.Actions)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func validateActionSequence(actions []domain.CourseAction) error {
	seen := make(map[int]bool, len(actions))
	for _, a := range actions {
		if seen[a.Sequence] {
			return fmt.Errorf("duplicate sequence %d", a.Sequence)
		}
		seen[a.Sequence] = true
	}
	for i := 0; i < len(actions); i++ {
		if !seen[i] {
			return fmt.Errorf("sequence not dense from 0: missing %d", i)
		}
	}
	return nil
}

func insertActions(ctx context.Context, tx *sql.Tx, courseID string, actions []domain.CourseAction) error {
	for _, a := range actions {
		var cfg []byte
		if a.BehaviorConfig != nil {
			b, err := json.Marshal(a.BehaviorConfig)
			if err != nil {
				return fmt.Errorf("marshal behavior_config: %w", err)
			}
			cfg = b
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO course_actions
				(course_id, sequence, device_id, action, action_type, audio_clip,
				 min_time, max_time, triggers_next_athlete, marks_run_complete,
				 group_identifier, behavior_config)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			courseID, a.Sequence, a.DeviceID, a.Action, a.ActionType, a.AudioClip,
			a.MinTime, a.MaxTime, boolToInt(a.TriggersNextAthlete), boolToInt(a.MarksRunComplete),
			a.GroupIdentifier, cfg,
		)
		if err != nil {
			return classify(err)
		}
	}
	return nil
}

// GetCourse returns the course (with actions ordered by sequence) by id.
func (s *Store) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	return s.getCourse(ctx, "id", id)
}

// GetCourseByName returns the course by its unique name.
func (s *Store) GetCourseByName(ctx context.Context, name string) (*domain.Course, error) {
	return s.getCourse(ctx, "name", name)
}

func (s *Store) getCourse(ctx context.Context, col, val string) (*domain.Course, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT id, name, description, type, mode, category, total_devices FROM courses WHERE %s = ?`, col), val)

	var c domain.Course
	var mode string
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Type, &mode, &c.Category, &c.TotalDevices); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}
	c.Mode = domain.CourseMode(mode)

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, device_id, action, action_type, audio_clip, min_time, max_time,
		       triggers_next_athlete, marks_run_complete, group_identifier, behavior_config
		FROM course_actions WHERE course_id = ? ORDER BY sequence ASC`, c.ID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.CourseAction
		var cfg sql.NullString
		var trig, mark int
		if err := rows.Scan(&a.Sequence, &a.DeviceID, &a.Action, &a.ActionType, &a.AudioClip,
			&a.MinTime, &a.MaxTime, &trig, &mark, &a.GroupIdentifier, &cfg); err != nil {
			return nil, classify(err)
		}
		a.TriggersNextAthlete = trig != 0
		a.MarksRunComplete = mark != 0
		if cfg.Valid && cfg.String != "" {
			if err := json.Unmarshal([]byte(cfg.String), &a.BehaviorConfig); err != nil {
				return nil, fmt.Errorf("unmarshal behavior_config: %w", err)
			}
		}
		c.Actions = append(c.Actions, a)
	}
	return &c, rows.Err()
}

// DuplicateCourse copies a course and its actions under a uniquified name.
func (s *Store) DuplicateCourse(ctx context.Context, id string) (string, error) {
	c, err := s.GetCourse(ctx, id)
	if err != nil {
		return "", err
	}
	newName := c.Name + " (copy)"
	for n := 2; ; n++ {
		if _, err := s.GetCourseByName(ctx, newName); err == ErrNotFound {
			break
		}
		newName = fmt.Sprintf("%s (copy %d)", c.Name, n)
	}
	c.Name = newName
	c.ID = ""
	return s.CreateCourse(ctx, *c)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
