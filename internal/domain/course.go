package domain

// CourseMode selects which orchestration algorithm the Session Engine uses
// for a deployed course.
type CourseMode string

const (
	ModeSequential CourseMode = "sequential"
	ModePattern    CourseMode = "pattern"
	ModeGroup      CourseMode = "group"
)

// Course is a named, ordered arrangement of per-device behaviors.
type Course struct {
	ID           string
	Name         string
	Description  string
	Type         string
	Mode         CourseMode
	Category     string
	TotalDevices int
	Actions      []CourseAction // ordered by Sequence
}

// CourseAction assigns one cone a behavior within a Course.
type CourseAction struct {
	Sequence            int
	DeviceID            string
	Action              string
	ActionType          string
	AudioClip           string
	MinTime             float64
	MaxTime             float64
	TriggersNextAthlete bool
	MarksRunComplete    bool
	GroupIdentifier     string
	BehaviorConfig      map[string]any
}

// Color returns the assigned solid color for a pattern-mode cone, or ""
// if the action carries none.
func (a CourseAction) Color() string {
	if a.BehaviorConfig == nil {
		return ""
	}
	c, _ := a.BehaviorConfig["color"].(string)
	return c
}

// IsController reports whether this action targets the controller's own
// virtual Device 0 rather than a networked cone.
func (a CourseAction) IsController() bool {
	return a.DeviceID == ControllerDeviceID
}

// ControllerDeviceID is the logical identifier of the controller's own
// virtual cone ("Device 0"), used as the start/submit device in Pattern
// mode and as the gateway card in registry snapshots.
const ControllerDeviceID = "controller"
