package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldcone/controller/internal/domain"
)

// StartRun sets status='running', started_at=now. Commits before
// returning so concurrent heartbeats observe the new state (spec §4.B,
// §5).
func (s *Store) StartRun(ctx context.Context, runID string, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
			string(domain.RunRunning), at.UTC().Format(time.RFC3339Nano), runID, string(domain.RunQueued),
		)
		if err != nil {
			return classify(err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: run %s not queued", ErrInvalidTransition, runID)
		}
		return nil
	})
}

// UpdateRunTimerStart sets timer_start_at (Pattern mode only).
func (s *Store) UpdateRunTimerStart(ctx context.Context, runID string, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE runs SET timer_start_at = ? WHERE id = ?`,
			at.UTC().Format(time.RFC3339Nano), runID)
		return classify(err)
	})
}

// CompleteRun sets the run to a terminal status with total_time and
// completed_at.
func (s *Store) CompleteRun(ctx context.Context, runID string, at time.Time, totalTime float64, status domain.RunStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE runs SET status = ?, completed_at = ?, total_time = ? WHERE id = ?`,
			string(status), at.UTC().Format(time.RFC3339Nano), totalTime, runID,
		)
		return classify(err)
	})
}

// CreateSegmentsForRun creates one segment per adjacent device pair in the
// course (Sequential mode), using the course's min/max time bounds.
// Idempotent: if any segment already exists for the run, this is a no-op;
// a concurrent duplicate attempt surfaces as ErrAlreadyExists via the
// UNIQUE(run_id, sequence) constraint and is swallowed by the caller.
func (s *Store) CreateSegmentsForRun(ctx context.Context, runID string, course domain.Course) error {
	existing, err := s.segmentCount(ctx, runID)
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	devices := nonControllerDevices(course.Actions)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		from := domain.ControllerDeviceID
		for i, act := range devices {
			if err := insertSegment(ctx, tx, s.uuidFn(), runID, i, from, act.DeviceID, act.MinTime, act.MaxTime); err != nil {
				return err
			}
			from = act.DeviceID
		}
		return nil
	})
	if isAlreadyExists(err) {
		return nil
	}
	return err
}

// CreatePatternSegmentsForRun creates one segment per step, from_device
// threaded from the start device through the chosen pattern, with
// sentinel min_time=0, max_time=999 (Pattern mode). Same idempotence
// guarantee as CreateSegmentsForRun.
func (s *Store) CreatePatternSegmentsForRun(ctx context.Context, runID string, patternDeviceIDs []string) error {
	existing, err := s.segmentCount(ctx, runID)
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		from := domain.ControllerDeviceID
		for i, deviceID := range patternDeviceIDs {
			if err := insertSegment(ctx, tx, s.uuidFn(), runID, i, from, deviceID, 0, 999); err != nil {
				return err
			}
			from = deviceID
		}
		return nil
	})
	if isAlreadyExists(err) {
		return nil
	}
	return err
}

func insertSegment(ctx context.Context, tx *sql.Tx, id, runID string, seq int, from, to string, minT, maxT float64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO segments (id, run_id, sequence, from_device, to_device, expected_min_time, expected_max_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, runID, seq, from, to, minT, maxT,
	)
	return classify(err)
}

func (s *Store) segmentCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segments WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func nonControllerDevices(actions []domain.CourseAction) []domain.CourseAction {
	out := make([]domain.CourseAction, 0, len(actions))
	for _, a := range actions {
		if !a.IsController() {
			out = append(out, a)
		}
	}
	return out
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
