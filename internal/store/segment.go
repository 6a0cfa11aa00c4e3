package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldcone/controller/internal/domain"
)

// RecordTouch atomically finds the earliest not-yet-touched segment whose
// to_device == deviceID, computes actual_time relative to the previous
// touched segment's timestamp (or the run's started_at when no earlier
// segment has been touched), computes cumulative_time from timer_start_at if set, and marks
// the segment touched. Returns "" with no error if no matching open
// segment exists (spec §4.B, §8 property 6/13). Retries on transient lock
// errors with the spec's backoff ladder.
func (s *Store) RecordTouch(ctx context.Context, runID, deviceID string, at time.Time) (string, error) {
	var segmentID string
	err := s.withRetry(ctx, "record_touch", func(tx *sql.Tx) error {
		segmentID = "" // reset on each retry attempt
		row := tx.QueryRowContext(ctx, `
			SELECT id, sequence FROM segments
			WHERE run_id = ? AND to_device = ? AND touch_detected = 0
			ORDER BY sequence ASC LIMIT 1`, runID, deviceID)

		var segID string
		var seq int
		if err := row.Scan(&segID, &seq); err != nil {
			if err == sql.ErrNoRows {
				return nil // no matching open segment; leave segmentID empty
			}
			return classify(err)
		}

		ref, err := s.referenceTimestamp(ctx, tx, runID, seq)
		if err != nil {
			return err
		}
		actual := at.Sub(ref).Seconds()

		var cumulative *float64
		var timerStart sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT timer_start_at FROM runs WHERE id = ?`, runID).Scan(&timerStart); err != nil {
			return classify(err)
		}
		if ts, err := parseNullTime(timerStart); err == nil && ts != nil {
			c := at.Sub(*ts).Seconds()
			cumulative = &c
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE segments
			SET touch_detected = 1, touch_timestamp = ?, actual_time = ?, cumulative_time = ?
			WHERE id = ?`,
			at.UTC().Format(time.RFC3339Nano), actual, cumulative, segID,
		)
		if err != nil {
			return classify(err)
		}
		segmentID = segID
		return nil
	})
	if err != nil {
		return "", err
	}
	return segmentID, nil
}

// referenceTimestamp returns the timestamp this segment's actual_time is
// measured from: the touch_timestamp of the latest touched segment before
// this one, or the run's started_at if no earlier segment has been touched
// (spec §4.B, §8 boundary behavior).
func (s *Store) referenceTimestamp(ctx context.Context, tx *sql.Tx, runID string, seq int) (time.Time, error) {
	if seq > 0 {
		var prevTS sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT touch_timestamp FROM segments
			WHERE run_id = ? AND sequence < ? AND touch_detected = 1
			ORDER BY sequence DESC LIMIT 1`, runID, seq).Scan(&prevTS)
		if err == nil {
			if t, perr := parseNullTime(prevTS); perr == nil && t != nil {
				return *t, nil
			}
		} else if err != sql.ErrNoRows {
			return time.Time{}, classify(err)
		}
	}
	var startedAt sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT started_at FROM runs WHERE id = ?`, runID).Scan(&startedAt); err != nil {
		return time.Time{}, classify(err)
	}
	t, err := parseNullTime(startedAt)
	if err != nil || t == nil {
		return time.Time{}, ErrConstraintViolation
	}
	return *t, nil
}

// MarkSegmentMissed sets alert_raised=true, alert_type='missed_touch'.
func (s *Store) MarkSegmentMissed(ctx context.Context, segmentID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE segments SET alert_raised = 1, alert_type = ? WHERE id = ?`,
			string(domain.AlertMissedTouch), segmentID,
		)
		return classify(err)
	})
}

// CheckSegmentAlerts re-reads actual_time after a touch and compares it to
// the segment's bounds: < min => too_fast, > max => too_slow, otherwise
// alert fields are left alone. Per §9, pattern-mode segments carry
// sentinel bounds (0, 999) so this is always a no-op for them. Retries on
// transient lock with the spec's backoff ladder.
func (s *Store) CheckSegmentAlerts(ctx context.Context, segmentID string) error {
	return s.withRetry(ctx, "check_segment_alerts", func(tx *sql.Tx) error {
		var actual sql.NullFloat64
		var minT, maxT float64
		err := tx.QueryRowContext(ctx, `
			SELECT actual_time, expected_min_time, expected_max_time FROM segments WHERE id = ?`, segmentID).
			Scan(&actual, &minT, &maxT)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return classify(err)
		}
		if !actual.Valid {
			return nil
		}
		var alert domain.AlertType
		switch {
		case actual.Float64 < minT:
			alert = domain.AlertTooFast
		case actual.Float64 > maxT:
			alert = domain.AlertTooSlow
		default:
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE segments SET alert_type = ? WHERE id = ?`, string(alert), segmentID)
		return classify(err)
	})
}

// ListSegments returns all segments for a run ordered by sequence.
func (s *Store) ListSegments(ctx context.Context, runID string) ([]domain.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, sequence, from_device, to_device, expected_min_time, expected_max_time,
		       actual_time, cumulative_time, touch_detected, touch_timestamp, alert_raised, alert_type
		FROM segments WHERE run_id = ? ORDER BY sequence ASC`, runID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.Segment
	for rows.Next() {
		var seg domain.Segment
		var actual, cumulative sql.NullFloat64
		var touchTS, alertType sql.NullString
		var touchDetected, alertRaised int
		if err := rows.Scan(&seg.ID, &seg.RunID, &seg.Sequence, &seg.FromDevice, &seg.ToDevice,
			&seg.ExpectedMinTime, &seg.ExpectedMaxTime, &actual, &cumulative, &touchDetected,
			&touchTS, &alertRaised, &alertType); err != nil {
			return nil, classify(err)
		}
		seg.TouchDetected = touchDetected != 0
		seg.AlertRaised = alertRaised != 0
		if alertType.Valid {
			seg.AlertType = domain.AlertType(alertType.String)
		}
		if actual.Valid {
			v := actual.Float64
			seg.ActualTime = &v
		}
		if cumulative.Valid {
			v := cumulative.Float64
			seg.CumulativeTime = &v
		}
		if t, err := parseNullTime(touchTS); err == nil {
			seg.TouchTimestamp = t
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}
