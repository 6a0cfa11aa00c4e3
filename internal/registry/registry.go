// Package registry implements the in-memory authoritative map of cones,
// their last-known state, and the transient send channel for each (spec
// §4.C). It is the single source of truth for "who is currently
// reachable."
package registry

import (
	"sync"
	"time"

	"github.com/fieldcone/controller/internal/domain"
)

// CourseStatus mirrors the course lifecycle state as observed by the
// Registry (spec §4.C, §4.F).
type CourseStatus string

const (
	Inactive CourseStatus = "Inactive"
	Deployed CourseStatus = "Deployed"
	Active   CourseStatus = "Active"
)

// DisplayStatus is the cone's display status as derived by the Heartbeat
// Server from (course_status, whether this node has an assignment) per
// spec §4.D.2.
type DisplayStatus string

const (
	StatusStandby  DisplayStatus = "Standby"
	StatusDeployed DisplayStatus = "Deployed"
	StatusActive   DisplayStatus = "Active"
	StatusOffline  DisplayStatus = "Offline"
)

// FrameWriter is the minimal capability a Heartbeat Server connection
// handler exposes to the rest of the core for sending command frames: a
// single-producer write of one encoded frame. Modeling it as a narrow
// interface (rather than exposing the net.Conn) follows the "explicit
// capability interfaces, not reflection/attribute probing" guidance.
type FrameWriter interface {
	WriteFrame(v any) error
}

// Node is one cone's transient + last-observed state.
type Node struct {
	NodeID   string
	Addr     string
	Status   DisplayStatus
	Sensors  map[string]any
	LEDPattern   string // last controller-commanded LED pattern
	AudioClip    string // last controller-commanded audio clip
	Assignment   string // assigned action, if any
	BatteryLevel *float64
	SkewMS       float64
	LastSeen     time.Time

	writer FrameWriter // nil means disconnected
}

// Snapshot is a deep copy of a Node safe to marshal without holding the
// Registry's lock.
type Snapshot struct {
	NodeID       string
	Addr         string
	Status       DisplayStatus
	Sensors      map[string]any
	LEDPattern   string
	AudioClip    string
	Assignment   string
	BatteryLevel *float64
	SkewMS       float64
	LastSeen     time.Time
	Connected    bool
}

// Registry is the concurrency-safe fleet map. A single mutex protects the
// nodes map and the transient writer fields (spec §4.C, §5).
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Node

	courseStatus   CourseStatus
	selectedCourse string
	assignments    map[string]string // node_id -> action
}

// New creates an empty Registry with the controller's own course status
// Inactive.
func New() *Registry {
	return &Registry{
		nodes:       make(map[string]*Node),
		assignments: make(map[string]string),
		courseStatus: Inactive,
	}
}

// UpsertParams carries the fields a heartbeat frame may update. LEDPattern
// and AudioClip are deliberately absent: the core must never accept them
// from a heartbeat (spec §4.D step 3, §9 "heartbeat convergence bug-by-
// omission" — enforced by construction, since this type has no such
// fields for a heartbeat decoder to populate).
type UpsertParams struct {
	NodeID       string
	Addr         string
	Status       DisplayStatus
	Sensors      map[string]any
	BatteryLevel *float64
	SkewMS       float64
	Seen         time.Time
}

// UpsertNode records a heartbeat's reported fields for a node, creating
// the entry if absent. It never touches LEDPattern/AudioClip.
func (r *Registry) UpsertNode(p UpsertParams) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[p.NodeID]
	if !ok {
		n = &Node{NodeID: p.NodeID}
		r.nodes[p.NodeID] = n
	}
	n.Addr = p.Addr
	n.Status = p.Status
	n.Sensors = p.Sensors
	n.BatteryLevel = p.BatteryLevel
	n.SkewMS = p.SkewMS
	n.LastSeen = p.Seen
	n.Assignment = r.assignments[p.NodeID]
}

// SetWriter attaches (or, passed nil, detaches) a node's transient frame
// writer. Detaching implies "disconnected."
func (r *Registry) SetWriter(nodeID string, w FrameWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		n = &Node{NodeID: nodeID}
		r.nodes[nodeID] = n
	}
	n.writer = w
}

// Writer returns the node's current frame writer, or nil if disconnected
// or unknown.
func (r *Registry) Writer(nodeID string) FrameWriter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return nil
	}
	return n.writer
}

// MarkOffline detaches a node's writer and marks it Offline, used on
// socket error or ~15s heartbeat silence (spec §7 Transport class).
func (r *Registry) MarkOffline(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return
	}
	n.writer = nil
	n.Status = StatusOffline
}

// RecordCommandedState updates the Registry's memory of what LED
// pattern/audio clip the controller last commanded for a node, so the
// next heartbeat acknowledgement can converge the device (spec §4.D.6)
// and so LED animation sequences can restore a cone's assigned solid
// color without resending a stale chase command (spec §4.G.6/§4.G.7).
func (r *Registry) RecordCommandedState(nodeID string, ledPattern, audioClip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		n = &Node{NodeID: nodeID}
		r.nodes[nodeID] = n
	}
	if ledPattern != "" {
		n.LEDPattern = ledPattern
	}
	if audioClip != "" {
		n.AudioClip = audioClip
	}
}

// CommandedState returns the last controller-commanded LED pattern and
// audio clip for a node, used to populate heartbeat acknowledgements.
func (r *Registry) CommandedState(nodeID string) (ledPattern, audioClip string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return "", ""
	}
	return n.LEDPattern, n.AudioClip
}

// CourseState returns the current course_status and selected_course.
func (r *Registry) CourseState() (CourseStatus, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.courseStatus, r.selectedCourse
}

// SetCourseState sets course_status/selected_course, as driven by the
// Course Lifecycle state machine.
func (r *Registry) SetCourseState(status CourseStatus, course string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courseStatus = status
	r.selectedCourse = course
}

// SetAssignments replaces the node_id -> action assignment map (Deploy).
func (r *Registry) SetAssignments(assignments map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = assignments
	for nodeID, action := range assignments {
		if n, ok := r.nodes[nodeID]; ok {
			n.Assignment = action
		}
	}
}

// ClearAssignments empties the assignment map (Deactivate/Deploy-reset).
func (r *Registry) ClearAssignments() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = make(map[string]string)
	for _, n := range r.nodes {
		n.Assignment = ""
	}
}

// Assignment returns the action assigned to a node, or "" if none.
func (r *Registry) Assignment(nodeID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.assignments[nodeID]
}

// Assignments returns a copy of the full node_id -> action map.
func (r *Registry) Assignments() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.assignments))
	for k, v := range r.assignments {
		out[k] = v
	}
	return out
}

// DisplayStatusFor derives a cone's display status per spec §4.D.2:
// Active if course is Active and it has an assignment; Deployed if course
// is Deployed and it has an assignment; else Standby.
func DisplayStatusFor(courseStatus CourseStatus, hasAssignment bool) DisplayStatus {
	switch {
	case courseStatus == Active && hasAssignment:
		return StatusActive
	case courseStatus == Deployed && hasAssignment:
		return StatusDeployed
	default:
		return StatusStandby
	}
}

// Snapshot returns a read-only deep copy of the fleet, suitable for
// marshaling to the UI without holding the Registry's lock (spec §4.C).
// It includes a virtual "Device 0" entry for the controller itself when
// course_status is not Inactive, per spec.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.nodes)+1)
	for _, n := range r.nodes {
		out = append(out, Snapshot{
			NodeID:       n.NodeID,
			Addr:         n.Addr,
			Status:       n.Status,
			Sensors:      copySensors(n.Sensors),
			LEDPattern:   n.LEDPattern,
			AudioClip:    n.AudioClip,
			Assignment:   n.Assignment,
			BatteryLevel: n.BatteryLevel,
			SkewMS:       n.SkewMS,
			LastSeen:     n.LastSeen,
			Connected:    n.writer != nil,
		})
	}
	if r.courseStatus != Inactive {
		out = append(out, Snapshot{
			NodeID:     domain.ControllerDeviceID,
			Status:     StatusActive,
			Assignment: r.assignments[domain.ControllerDeviceID],
			Connected:  true,
		})
	}
	return out
}

func copySensors(s map[string]any) map[string]any {
	if s == nil {
		return nil
	}
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SweepOffline marks any node whose LastSeen is older than threshold as
// Offline and detaches its writer (spec §7: "Offline after ~15s of
// heartbeat silence"). Intended to be called from a periodic ticker.
func (r *Registry) SweepOffline(now time.Time, threshold time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var offlined []string
	for id, n := range r.nodes {
		if n.Status == StatusOffline {
			continue
		}
		if now.Sub(n.LastSeen) > threshold {
			n.writer = nil
			n.Status = StatusOffline
			offlined = append(offlined, id)
		}
	}
	return offlined
}
