package registry

import (
	"testing"
	"time"
)

type fakeWriter struct{ frames []any }

func (f *fakeWriter) WriteFrame(v any) error {
	f.frames = append(f.frames, v)
	return nil
}

func TestUpsertNode_CreatesAndUpdates(t *testing.T) {
	r := New()
	now := time.Now()

	r.UpsertNode(UpsertParams{NodeID: "cone-1", Addr: "10.0.0.1:4242", Status: StatusStandby, Seen: now})
	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 node, got %d", len(snap))
	}
	if snap[0].NodeID != "cone-1" || snap[0].Status != StatusStandby {
		t.Errorf("unexpected snapshot: %+v", snap[0])
	}

	later := now.Add(time.Second)
	r.UpsertNode(UpsertParams{NodeID: "cone-1", Addr: "10.0.0.1:4242", Status: StatusActive, Seen: later})
	snap = r.Snapshot()
	if snap[0].Status != StatusActive || !snap[0].LastSeen.Equal(later) {
		t.Errorf("expected upsert to update existing node, got %+v", snap[0])
	}
}

func TestUpsertNode_NeverTouchesLEDOrAudio(t *testing.T) {
	r := New()
	r.RecordCommandedState("cone-1", "solid_green", "whistle.wav")
	r.UpsertNode(UpsertParams{NodeID: "cone-1", Status: StatusStandby, Seen: time.Now()})

	led, audio := r.CommandedState("cone-1")
	if led != "solid_green" || audio != "whistle.wav" {
		t.Errorf("heartbeat upsert must not clobber commanded LED/audio state, got led=%q audio=%q", led, audio)
	}
}

func TestSetWriter_DisplayStatusOnSnapshot(t *testing.T) {
	r := New()
	r.UpsertNode(UpsertParams{NodeID: "cone-1", Seen: time.Now()})

	snap := r.Snapshot()
	if snap[0].Connected {
		t.Error("expected node to be disconnected before SetWriter")
	}

	w := &fakeWriter{}
	r.SetWriter("cone-1", w)
	snap = r.Snapshot()
	if !snap[0].Connected {
		t.Error("expected node to be connected after SetWriter")
	}

	if r.Writer("cone-1") != w {
		t.Error("Writer did not return the attached writer")
	}

	r.MarkOffline("cone-1")
	if r.Writer("cone-1") != nil {
		t.Error("expected writer to be detached after MarkOffline")
	}
	snap = r.Snapshot()
	if snap[0].Status != StatusOffline {
		t.Errorf("expected status Offline after MarkOffline, got %s", snap[0].Status)
	}
}

func TestAssignments_SetAndClear(t *testing.T) {
	r := New()
	r.UpsertNode(UpsertParams{NodeID: "cone-1", Seen: time.Now()})
	r.UpsertNode(UpsertParams{NodeID: "cone-2", Seen: time.Now()})

	r.SetAssignments(map[string]string{"cone-1": "segment-a"})
	if r.Assignment("cone-1") != "segment-a" {
		t.Errorf("expected cone-1 assignment segment-a, got %q", r.Assignment("cone-1"))
	}
	if r.Assignment("cone-2") != "" {
		t.Errorf("expected cone-2 to have no assignment, got %q", r.Assignment("cone-2"))
	}

	// A fresh heartbeat upsert must reattach the current assignment.
	r.UpsertNode(UpsertParams{NodeID: "cone-1", Seen: time.Now()})
	snap := r.Snapshot()
	for _, s := range snap {
		if s.NodeID == "cone-1" && s.Assignment != "segment-a" {
			t.Errorf("expected upsert to preserve assignment, got %q", s.Assignment)
		}
	}

	r.ClearAssignments()
	if r.Assignment("cone-1") != "" {
		t.Errorf("expected assignment cleared, got %q", r.Assignment("cone-1"))
	}
}

func TestDisplayStatusFor(t *testing.T) {
	tests := []struct {
		name          string
		courseStatus  CourseStatus
		hasAssignment bool
		want          DisplayStatus
	}{
		{"active with assignment", Active, true, StatusActive},
		{"active without assignment", Active, false, StatusStandby},
		{"deployed with assignment", Deployed, true, StatusDeployed},
		{"deployed without assignment", Deployed, false, StatusStandby},
		{"inactive", Inactive, true, StatusStandby},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayStatusFor(tt.courseStatus, tt.hasAssignment); got != tt.want {
				t.Errorf("DisplayStatusFor(%s, %v) = %s, want %s", tt.courseStatus, tt.hasAssignment, got, tt.want)
			}
		})
	}
}

func TestSnapshot_IncludesControllerDeviceWhenCourseNotInactive(t *testing.T) {
	r := New()
	r.UpsertNode(UpsertParams{NodeID: "cone-1", Seen: time.Now()})

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected no controller device while course Inactive, got %d entries", len(snap))
	}

	r.SetCourseState(Deployed, "course-a")
	snap = r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected controller device entry once course is Deployed, got %d entries", len(snap))
	}
}

func TestSweepOffline(t *testing.T) {
	r := New()
	now := time.Now()
	r.UpsertNode(UpsertParams{NodeID: "cone-fresh", Seen: now})
	r.UpsertNode(UpsertParams{NodeID: "cone-stale", Seen: now.Add(-20 * time.Second)})

	w := &fakeWriter{}
	r.SetWriter("cone-stale", w)

	offlined := r.SweepOffline(now, 15*time.Second)
	if len(offlined) != 1 || offlined[0] != "cone-stale" {
		t.Fatalf("expected only cone-stale to be offlined, got %v", offlined)
	}
	if r.Writer("cone-stale") != nil {
		t.Error("expected writer detached for offlined node")
	}

	// A second sweep should not re-report an already-offline node.
	offlined = r.SweepOffline(now, 15*time.Second)
	if len(offlined) != 0 {
		t.Errorf("expected no nodes offlined on second sweep, got %v", offlined)
	}
}

func TestSnapshot_SensorsAreDeepCopied(t *testing.T) {
	r := New()
	sensors := map[string]any{"touch": true}
	r.UpsertNode(UpsertParams{NodeID: "cone-1", Sensors: sensors, Seen: time.Now()})

	snap := r.Snapshot()
	snap[0].Sensors["touch"] = false

	snap2 := r.Snapshot()
	if snap2[0].Sensors["touch"] != true {
		t.Error("expected Snapshot to return a deep copy of sensors, mutation leaked into registry state")
	}
}
