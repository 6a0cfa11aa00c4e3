package session

import (
	"testing"

	"github.com/fieldcone/controller/internal/domain"
)

func TestDeviceSequence_ExcludesController(t *testing.T) {
	course := domain.Course{
		Actions: []domain.CourseAction{
			{DeviceID: domain.ControllerDeviceID},
			{DeviceID: "cone-1"},
			{DeviceID: "cone-2"},
		},
	}
	seq := deviceSequence(course)
	if len(seq) != 2 || seq[0] != "cone-1" || seq[1] != "cone-2" {
		t.Fatalf("expected [cone-1 cone-2], got %v", seq)
	}
}

func TestIndexOf(t *testing.T) {
	devices := []string{"cone-1", "cone-2", "cone-3"}
	if indexOf(devices, "cone-2") != 1 {
		t.Errorf("expected index 1 for cone-2")
	}
	if indexOf(devices, "cone-missing") != -1 {
		t.Errorf("expected -1 for unknown device")
	}
}

func TestSmallestQueuePosition(t *testing.T) {
	candidates := []*runInfo{
		{RunID: "r2", QueuePosition: 2},
		{RunID: "r0", QueuePosition: 0},
		{RunID: "r1", QueuePosition: 1},
	}
	got := smallestQueuePosition(candidates)
	if got.RunID != "r0" {
		t.Errorf("expected r0 (smallest queue position), got %s", got.RunID)
	}
}

func TestSmallestQueuePosition_EmptyReturnsNil(t *testing.T) {
	if smallestQueuePosition(nil) != nil {
		t.Error("expected nil for empty candidate list")
	}
}

func TestActionIndexForDevice(t *testing.T) {
	course := domain.Course{
		Actions: []domain.CourseAction{
			{DeviceID: "cone-1"},
			{DeviceID: "cone-2"},
		},
	}
	if idx := actionIndexForDevice(course, "cone-2"); idx != 1 {
		t.Errorf("expected index 1 for cone-2, got %d", idx)
	}
}

func TestPickPriority1_PrefersSmallestQueuePosition(t *testing.T) {
	candidates := []*runInfo{
		{RunID: "r-late", QueuePosition: 5},
		{RunID: "r-early", QueuePosition: 0},
	}
	got := pickPriority1(candidates)
	if got.RunID != "r-early" {
		t.Errorf("expected r-early chosen, got %s", got.RunID)
	}
}

// TestPickPriority2_PrefersSmallestGapOverQueuePosition exercises spec
// §4.G.4 step 5: run A is earlier in the queue but further behind
// (gap=3), run B is later in the queue but closer to the touched device
// (gap=2). The smaller gap must win regardless of queue_position.
func TestPickPriority2_PrefersSmallestGapOverQueuePosition(t *testing.T) {
	// devicePos=4: A at SequencePos=1 has gap=3, B at SequencePos=2 has gap=2.
	candidates := []*runInfo{
		{RunID: "a", QueuePosition: 0, SequencePos: 1},
		{RunID: "b", QueuePosition: 1, SequencePos: 2},
	}
	got := pickPriority2(candidates, 4)
	if got.RunID != "b" {
		t.Fatalf("expected b (smaller gap=2) to be chosen over a (gap=3), got %s", got.RunID)
	}
}

func TestPickPriority2_TiesBrokenBySmallestQueuePosition(t *testing.T) {
	// Both candidates have the same gap=2; smallest queue_position wins.
	candidates := []*runInfo{
		{RunID: "a", QueuePosition: 1, SequencePos: 2},
		{RunID: "b", QueuePosition: 0, SequencePos: 2},
	}
	got := pickPriority2(candidates, 4)
	if got.RunID != "b" {
		t.Fatalf("expected b (smaller queue_position on gap tie), got %s", got.RunID)
	}
}

func TestPickPriority2_EmptyReturnsNil(t *testing.T) {
	if pickPriority2(nil, 4) != nil {
		t.Error("expected nil for empty candidate list")
	}
}
