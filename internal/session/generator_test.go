package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldcone/controller/internal/command"
	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/registry"
	"github.com/fieldcone/controller/internal/store"
)

// noopStore satisfies the session Store interface for tests that only
// exercise the generator's pure sampling logic and never touch persistence.
type noopStore struct{}

func (noopStore) StartSession(context.Context, string) error { return nil }
func (noopStore) CompleteSession(context.Context, string, domain.SessionStatus, string) error {
	return nil
}
func (noopStore) GetSession(context.Context, string) (*domain.Session, error) { return nil, nil }
func (noopStore) GetCourse(context.Context, string) (*domain.Course, error)   { return nil, nil }
func (noopStore) GetNextQueuedRun(context.Context, string) (*domain.Run, error) {
	return nil, nil
}
func (noopStore) ListRuns(context.Context, string) ([]domain.Run, error) { return nil, nil }
func (noopStore) StartRun(context.Context, string, time.Time) error     { return nil }
func (noopStore) UpdateRunTimerStart(context.Context, string, time.Time) error {
	return nil
}
func (noopStore) CompleteRun(context.Context, string, time.Time, float64, domain.RunStatus) error {
	return nil
}
func (noopStore) CreateSegmentsForRun(context.Context, string, domain.Course) error { return nil }
func (noopStore) CreatePatternSegmentsForRun(context.Context, string, []string) error {
	return nil
}
func (noopStore) RecordTouch(context.Context, string, string, time.Time) (string, error) {
	return "", nil
}
func (noopStore) MarkSegmentMissed(context.Context, string) error { return nil }
func (noopStore) CheckSegmentAlerts(context.Context, string) error { return nil }
func (noopStore) ListSegments(context.Context, string) ([]domain.Segment, error) {
	return nil, nil
}
func (noopStore) CreateSession(context.Context, string, string, []domain.Athlete, domain.AudioVoice, *domain.PatternConfig) (string, error) {
	return "", nil
}
func (noopStore) AppendOperatorLog(context.Context, store.OperatorLogEntry) error { return nil }

func newTestEngine() *Engine {
	reg := registry.New()
	emitter := command.New(reg, nil, nil, false, false, zerolog.Nop())
	return New(noopStore{}, reg, emitter, nil, zerolog.Nop())
}

func testColoredDevices() []domain.ColoredDevice {
	return []domain.ColoredDevice{
		{DeviceID: "cone-1", DeviceName: "touch", Color: "red"},
		{DeviceID: "cone-2", DeviceName: "touch", Color: "green"},
		{DeviceID: "cone-3", DeviceName: "touch", Color: "blue"},
		{DeviceID: "cone-4", DeviceName: "touch", Color: "amber"},
	}
}

func TestClampSequenceLength(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{1, 3},
		{3, 3},
		{5, 5},
		{8, 8},
		{20, 8},
	}
	for _, tt := range tests {
		if got := clampSequenceLength(tt.in); got != tt.want {
			t.Errorf("clampSequenceLength(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestColoredDevices_ExcludesControllerAndUncolored(t *testing.T) {
	course := domain.Course{
		Actions: []domain.CourseAction{
			{DeviceID: domain.ControllerDeviceID, Action: "start"},
			{DeviceID: "cone-1", Action: "touch", BehaviorConfig: map[string]any{"color": "red"}},
			{DeviceID: "cone-2", Action: "touch"}, // no color tag
		},
	}
	got := coloredDevices(course)
	for _, d := range got {
		if d.DeviceID == domain.ControllerDeviceID {
			t.Fatal("expected controller device excluded from colored devices")
		}
	}
	if len(got) != 1 || got[0].DeviceID != "cone-1" {
		t.Fatalf("expected only colored cone-1, uncolored cone-2 excluded, got %+v", got)
	}
}

func TestGeneratePattern_RespectsConfiguredLength(t *testing.T) {
	e := newTestEngine()
	cfg := domain.PatternConfig{SequenceLength: 4, AllowRepeats: false}

	pd := e.generatePattern(testColoredDevices(), cfg, nil)
	if len(pd.DeviceIDs) != 4 {
		t.Fatalf("expected pattern length 4, got %d", len(pd.DeviceIDs))
	}
}

func TestGeneratePattern_NoRepeatsProducesDistinctDevices(t *testing.T) {
	e := newTestEngine()
	cfg := domain.PatternConfig{SequenceLength: 4, AllowRepeats: false}

	pd := e.generatePattern(testColoredDevices(), cfg, nil)
	seen := map[string]bool{}
	for _, id := range pd.DeviceIDs {
		if seen[id] {
			t.Fatalf("expected no repeats, got duplicate device %q in %v", id, pd.DeviceIDs)
		}
		seen[id] = true
	}
}

func TestGeneratePattern_AllowRepeatsNeverImmediatelyRepeats(t *testing.T) {
	e := newTestEngine()
	cfg := domain.PatternConfig{SequenceLength: 8, AllowRepeats: true}

	pd := e.generatePattern(testColoredDevices(), cfg, nil)
	for i := 1; i < len(pd.DeviceIDs); i++ {
		if pd.DeviceIDs[i] == pd.DeviceIDs[i-1] {
			t.Fatalf("expected no back-to-back repeat at index %d, got %v", i, pd.DeviceIDs)
		}
	}
}

func TestGeneratePattern_LengthExceedingPoolForcesRepeats(t *testing.T) {
	e := newTestEngine()
	colored := testColoredDevices()[:2]
	cfg := domain.PatternConfig{SequenceLength: 6, AllowRepeats: false}

	pd := e.generatePattern(colored, cfg, nil)
	if len(pd.DeviceIDs) != 6 {
		t.Fatalf("expected forced-repeat pattern to still reach length 6, got %d", len(pd.DeviceIDs))
	}
}

func TestIdenticalToPrevious(t *testing.T) {
	a := []domain.ColoredDevice{{DeviceID: "cone-1"}, {DeviceID: "cone-2"}}
	if identicalToPrevious(a, []string{"cone-1", "cone-2"}) != true {
		t.Error("expected identical sequences to match")
	}
	if identicalToPrevious(a, []string{"cone-2", "cone-1"}) != false {
		t.Error("expected different order to not match")
	}
	if identicalToPrevious(a, []string{"cone-1"}) != false {
		t.Error("expected different length to not match")
	}
}
