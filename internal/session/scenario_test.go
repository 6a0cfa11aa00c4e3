package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldcone/controller/internal/command"
	xgclock "github.com/fieldcone/controller/internal/clock"
	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/registry"
	"github.com/fieldcone/controller/internal/store"
)

// scenarioRig wires a real Store (temp-file sqlite) to an Engine with a
// deterministic clock, grounded on the spec's §8 seed scenarios.
type scenarioRig struct {
	st    *store.Store
	reg   *registry.Registry
	clock xgclock.Clock
	eng   *Engine
}

func newScenarioRig(t *testing.T) *scenarioRig {
	t.Helper()
	mock := xgclock.NewMock(t)
	dbPath := filepath.Join(t.TempDir(), "scenario.db")
	st, err := store.Open(store.DefaultConfig(dbPath), mock, zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	reg := registry.New()
	emitter := command.New(reg, nil, nil, false, false, zerolog.Nop())
	eng := New(st, reg, emitter, mock, zerolog.Nop())
	return &scenarioRig{st: st, reg: reg, clock: mock, eng: eng}
}

// sixDeviceSequentialCourse builds course A from §8 scenario 1/2/3: a
// controller action followed by five touch devices D1..D5 with
// min_time=1.0, max_time=30.0, the last marking run completion.
func sixDeviceSequentialCourse() domain.Course {
	actions := []domain.CourseAction{
		{Sequence: 0, DeviceID: domain.ControllerDeviceID, Action: "start"},
	}
	for i := 1; i <= 5; i++ {
		actions = append(actions, domain.CourseAction{
			Sequence:         i,
			DeviceID:         deviceName(i),
			Action:           "touch",
			MinTime:          1.0,
			MaxTime:          30.0,
			MarksRunComplete: i == 5,
		})
	}
	return domain.Course{Name: "Course A", Mode: domain.ModeSequential, Actions: actions}
}

func deviceName(i int) string {
	return "D" + string(rune('0'+i))
}

func TestScenario1_HappyPathSequential(t *testing.T) {
	rig := newScenarioRig(t)
	ctx := context.Background()

	courseID, err := rig.st.CreateCourse(ctx, sixDeviceSequentialCourse())
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	teamID, _ := rig.st.CreateTeam(ctx, domain.Team{Name: "Lions"})
	sessID, err := rig.st.CreateSession(ctx, teamID, courseID, []domain.Athlete{{ID: "a1", Name: "Alice"}}, domain.VoiceFemale, nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	t0 := rig.clock.Now()
	if err := rig.eng.StartSession(ctx, sessID); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	touches := []struct {
		device string
		offset time.Duration
	}{
		{"D1", 0}, {"D2", 5 * time.Second}, {"D3", 10 * time.Second},
		{"D4", 15 * time.Second}, {"D5", 20 * time.Second},
	}
	for _, tc := range touches {
		rig.eng.HandleTouch(ctx, tc.device, t0.Add(tc.offset))
	}

	runs, err := rig.st.ListRuns(ctx, sessID)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != domain.RunCompleted {
		t.Fatalf("expected run completed, got %s", run.Status)
	}
	if run.TotalTime < 19.9 || run.TotalTime > 20.1 {
		t.Errorf("expected total_time ~20.0, got %v", run.TotalTime)
	}

	segs, err := rig.st.ListSegments(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	for _, seg := range segs {
		if !seg.TouchDetected {
			t.Errorf("expected segment %s touch_detected, got false", seg.ID)
		}
		if seg.AlertType != "" {
			t.Errorf("expected no alert on segment %s, got %q", seg.ID, seg.AlertType)
		}
	}
}

func TestScenario2_SkipOneSequential(t *testing.T) {
	rig := newScenarioRig(t)
	ctx := context.Background()

	courseID, _ := rig.st.CreateCourse(ctx, sixDeviceSequentialCourse())
	teamID, _ := rig.st.CreateTeam(ctx, domain.Team{Name: "Lions"})
	sessID, err := rig.st.CreateSession(ctx, teamID, courseID, []domain.Athlete{{ID: "a1", Name: "Alice"}}, domain.VoiceFemale, nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	t0 := rig.clock.Now()
	if err := rig.eng.StartSession(ctx, sessID); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	rig.eng.HandleTouch(ctx, "D1", t0)
	rig.eng.HandleTouch(ctx, "D2", t0.Add(5*time.Second))
	// D3 skipped.
	rig.eng.HandleTouch(ctx, "D4", t0.Add(10*time.Second))
	rig.eng.HandleTouch(ctx, "D5", t0.Add(15*time.Second))

	runs, err := rig.st.ListRuns(ctx, sessID)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	run := runs[0]

	segs, err := rig.st.ListSegments(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}

	var toD3, fromD3ToD4 *domain.Segment
	for i := range segs {
		if segs[i].ToDevice == "D3" {
			toD3 = &segs[i]
		}
		if segs[i].FromDevice == "D3" && segs[i].ToDevice == "D4" {
			fromD3ToD4 = &segs[i]
		}
	}
	if toD3 == nil || toD3.TouchDetected || toD3.AlertType != domain.AlertMissedTouch {
		t.Fatalf("expected segment to D3 missed with alert_type=missed_touch, got %+v", toD3)
	}
	if fromD3ToD4 == nil || !fromD3ToD4.TouchDetected {
		t.Fatalf("expected segment D3->D4 touch_detected, got %+v", fromD3ToD4)
	}
	if run.Status != domain.RunCompleted {
		t.Fatalf("expected run completed despite the skipped segment, got %s", run.Status)
	}
}
