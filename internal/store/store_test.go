package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	xgclock "github.com/fieldcone/controller/internal/clock"
	"github.com/fieldcone/controller/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mock := xgclock.NewMock(t)
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(DefaultConfig(dbPath), mock, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedCourse(t *testing.T, st *Store) domain.Course {
	t.Helper()
	c := domain.Course{
		Name: "Basic Agility",
		Mode: domain.ModeSequential,
		Actions: []domain.CourseAction{
			{Sequence: 0, DeviceID: "cone-1", Action: "touch", MinTime: 0, MaxTime: 30},
			{Sequence: 1, DeviceID: "cone-2", Action: "touch", MinTime: 0, MaxTime: 30, MarksRunComplete: true},
		},
	}
	id, err := st.CreateCourse(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	c.ID = id
	return c
}

func TestCreateCourse_RejectsNonDenseSequence(t *testing.T) {
	st := newTestStore(t)
	_, err := st.CreateCourse(context.Background(), domain.Course{
		Name: "Broken",
		Actions: []domain.CourseAction{
			{Sequence: 0, DeviceID: "cone-1"},
			{Sequence: 2, DeviceID: "cone-2"},
		},
	})
	if err == nil {
		t.Fatal("expected error for non-dense sequence")
	}
}

func TestCreateCourse_RejectsDuplicateSequence(t *testing.T) {
	st := newTestStore(t)
	_, err := st.CreateCourse(context.Background(), domain.Course{
		Name: "Broken",
		Actions: []domain.CourseAction{
			{Sequence: 0, DeviceID: "cone-1"},
			{Sequence: 0, DeviceID: "cone-2"},
		},
	})
	if err == nil {
		t.Fatal("expected error for duplicate sequence")
	}
}

func TestCreateCourse_NameUniqueness(t *testing.T) {
	st := newTestStore(t)
	seedCourse(t, st)

	_, err := st.CreateCourse(context.Background(), domain.Course{Name: "Basic Agility"})
	if err == nil {
		t.Fatal("expected ErrAlreadyExists on duplicate course name")
	}
}

func TestGetCourse_RoundTripsActionsInOrder(t *testing.T) {
	st := newTestStore(t)
	seeded := seedCourse(t, st)

	got, err := st.GetCourse(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if len(got.Actions) != 2 || got.Actions[0].DeviceID != "cone-1" || got.Actions[1].DeviceID != "cone-2" {
		t.Fatalf("expected actions ordered by sequence, got %+v", got.Actions)
	}
	if !got.Actions[1].MarksRunComplete {
		t.Error("expected second action to mark run complete")
	}
}

func TestGetCourse_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetCourse(context.Background(), "nonexistent")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateCourse_UniquifiesName(t *testing.T) {
	st := newTestStore(t)
	seeded := seedCourse(t, st)

	dupID, err := st.DuplicateCourse(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("DuplicateCourse: %v", err)
	}
	dup, err := st.GetCourse(context.Background(), dupID)
	if err != nil {
		t.Fatalf("GetCourse(dup): %v", err)
	}
	if dup.Name != "Basic Agility (copy)" {
		t.Errorf("expected uniquified name, got %q", dup.Name)
	}

	dupID2, err := st.DuplicateCourse(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("DuplicateCourse (2nd): %v", err)
	}
	dup2, err := st.GetCourse(context.Background(), dupID2)
	if err != nil {
		t.Fatalf("GetCourse(dup2): %v", err)
	}
	if dup2.Name != "Basic Agility (copy 2)" {
		t.Errorf("expected second uniquified name, got %q", dup2.Name)
	}
}

func TestCreateSession_CreatesOneRunPerAthleteInQueueOrder(t *testing.T) {
	st := newTestStore(t)
	course := seedCourse(t, st)
	teamID, err := st.CreateTeam(context.Background(), domain.Team{Name: "Lions"})
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	athletes := []domain.Athlete{{ID: "a1", Name: "Alice"}, {ID: "a2", Name: "Bob"}}
	sessID, err := st.CreateSession(context.Background(), teamID, course.ID, athletes, domain.VoiceFemale, nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	runs, err := st.ListRuns(context.Background(), sessID)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].AthleteID != "a1" || runs[0].QueuePosition != 0 {
		t.Errorf("expected first run for a1 at position 0, got %+v", runs[0])
	}
	if runs[1].AthleteID != "a2" || runs[1].QueuePosition != 1 {
		t.Errorf("expected second run for a2 at position 1, got %+v", runs[1])
	}
	for _, r := range runs {
		if r.Status != domain.RunQueued {
			t.Errorf("expected run status queued, got %s", r.Status)
		}
	}
}

func TestStartSession_OnlyFromSetup(t *testing.T) {
	st := newTestStore(t)
	course := seedCourse(t, st)
	teamID, _ := st.CreateTeam(context.Background(), domain.Team{Name: "Lions"})
	sessID, err := st.CreateSession(context.Background(), teamID, course.ID, nil, domain.VoiceFemale, nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := st.StartSession(context.Background(), sessID); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := st.StartSession(context.Background(), sessID); err == nil {
		t.Fatal("expected error starting an already-active session")
	}
}

func TestGetNextQueuedRun_ReturnsLowestPositionStillQueued(t *testing.T) {
	st := newTestStore(t)
	course := seedCourse(t, st)
	teamID, _ := st.CreateTeam(context.Background(), domain.Team{Name: "Lions"})
	athletes := []domain.Athlete{{ID: "a1", Name: "Alice"}, {ID: "a2", Name: "Bob"}}
	sessID, err := st.CreateSession(context.Background(), teamID, course.ID, athletes, domain.VoiceFemale, nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	next, err := st.GetNextQueuedRun(context.Background(), sessID)
	if err != nil {
		t.Fatalf("GetNextQueuedRun: %v", err)
	}
	if next.AthleteID != "a1" {
		t.Errorf("expected a1 to be next, got %s", next.AthleteID)
	}

	if err := st.StartRun(context.Background(), next.ID, time.Now()); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	next2, err := st.GetNextQueuedRun(context.Background(), sessID)
	if err != nil {
		t.Fatalf("GetNextQueuedRun (2nd): %v", err)
	}
	if next2.AthleteID != "a2" {
		t.Errorf("expected a2 to be next after a1 started, got %s", next2.AthleteID)
	}
}
