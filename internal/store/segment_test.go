package store

import (
	"context"
	"testing"
	"time"

	"github.com/fieldcone/controller/internal/domain"
)

// seedRun creates one athlete's run, starts it at a known time, and
// materializes its segments. The returned Run's StartedAt reflects the
// time passed to StartRun so callers can compute touch timestamps
// relative to it.
func seedRun(t *testing.T, st *Store, course domain.Course) *domain.Run {
	t.Helper()
	teamID, err := st.CreateTeam(context.Background(), domain.Team{Name: "Lions"})
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	athletes := []domain.Athlete{{ID: "a1", Name: "Alice"}}
	sessID, err := st.CreateSession(context.Background(), teamID, course.ID, athletes, domain.VoiceFemale, nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	next, err := st.GetNextQueuedRun(context.Background(), sessID)
	if err != nil {
		t.Fatalf("GetNextQueuedRun: %v", err)
	}
	startedAt := time.Now()
	if err := st.StartRun(context.Background(), next.ID, startedAt); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := st.CreateSegmentsForRun(context.Background(), next.ID, course); err != nil {
		t.Fatalf("CreateSegmentsForRun: %v", err)
	}
	next.StartedAt = &startedAt
	return next
}

func TestCreateSegmentsForRun_IsIdempotent(t *testing.T) {
	st := newTestStore(t)
	course := seedCourse(t, st)
	run := seedRun(t, st, course)

	if err := st.CreateSegmentsForRun(context.Background(), run.ID, course); err != nil {
		t.Fatalf("expected idempotent CreateSegmentsForRun to succeed, got %v", err)
	}
	segs, err := st.ListSegments(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments (one per device), got %d", len(segs))
	}
}

func TestRecordTouch_FirstSegmentMeasuredFromRunStart(t *testing.T) {
	st := newTestStore(t)
	course := seedCourse(t, st)
	run := seedRun(t, st, course)

	touchAt := run.StartedAt.Add(5 * time.Second)
	segID, err := st.RecordTouch(context.Background(), run.ID, "cone-1", touchAt)
	if err != nil {
		t.Fatalf("RecordTouch: %v", err)
	}
	if segID == "" {
		t.Fatal("expected a matching open segment")
	}

	segs, err := st.ListSegments(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if !segs[0].TouchDetected {
		t.Fatal("expected first segment touch_detected")
	}
	if segs[0].ActualTime == nil || *segs[0].ActualTime < 4.9 || *segs[0].ActualTime > 5.1 {
		t.Errorf("expected actual_time ~5s, got %v", segs[0].ActualTime)
	}
}

func TestRecordTouch_NoMatchingOpenSegment_ReturnsEmpty(t *testing.T) {
	st := newTestStore(t)
	course := seedCourse(t, st)
	run := seedRun(t, st, course)

	segID, err := st.RecordTouch(context.Background(), run.ID, "cone-nonexistent", time.Now())
	if err != nil {
		t.Fatalf("RecordTouch: %v", err)
	}
	if segID != "" {
		t.Errorf("expected empty segment id for unmatched device, got %q", segID)
	}
}

func TestCheckSegmentAlerts_TooFastAndTooSlow(t *testing.T) {
	st := newTestStore(t)
	course := seedCourse(t, st)
	run := seedRun(t, st, course)

	// cone-1's bound is [0, 30]; touching at +60s should raise too_slow.
	segID, err := st.RecordTouch(context.Background(), run.ID, "cone-1", run.StartedAt.Add(60*time.Second))
	if err != nil {
		t.Fatalf("RecordTouch: %v", err)
	}
	if err := st.CheckSegmentAlerts(context.Background(), segID); err != nil {
		t.Fatalf("CheckSegmentAlerts: %v", err)
	}

	segs, err := st.ListSegments(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if segs[0].AlertType != domain.AlertTooSlow {
		t.Errorf("expected too_slow alert, got %q", segs[0].AlertType)
	}
}

func TestMarkSegmentMissed_SetsAlertRaisedAndType(t *testing.T) {
	st := newTestStore(t)
	course := seedCourse(t, st)
	run := seedRun(t, st, course)

	segs, err := st.ListSegments(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if err := st.MarkSegmentMissed(context.Background(), segs[0].ID); err != nil {
		t.Fatalf("MarkSegmentMissed: %v", err)
	}

	segs, err = st.ListSegments(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("ListSegments (2nd): %v", err)
	}
	if !segs[0].AlertRaised || segs[0].AlertType != domain.AlertMissedTouch {
		t.Errorf("expected alert_raised with missed_touch type, got %+v", segs[0])
	}
}

func TestRecordTouch_SecondSegmentMeasuredFromPriorTouch(t *testing.T) {
	st := newTestStore(t)
	course := seedCourse(t, st)
	run := seedRun(t, st, course)

	firstTouch := run.StartedAt.Add(3 * time.Second)
	if _, err := st.RecordTouch(context.Background(), run.ID, "cone-1", firstTouch); err != nil {
		t.Fatalf("RecordTouch(cone-1): %v", err)
	}
	secondTouch := firstTouch.Add(4 * time.Second)
	if _, err := st.RecordTouch(context.Background(), run.ID, "cone-2", secondTouch); err != nil {
		t.Fatalf("RecordTouch(cone-2): %v", err)
	}

	segs, err := st.ListSegments(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if segs[1].ActualTime == nil || *segs[1].ActualTime < 3.9 || *segs[1].ActualTime > 4.1 {
		t.Errorf("expected second segment actual_time ~4s measured from first touch, got %v", segs[1].ActualTime)
	}
}
