package domain

import "time"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionSetup      SessionStatus = "setup"
	SessionActive     SessionStatus = "active"
	SessionCompleted  SessionStatus = "completed"
	SessionIncomplete SessionStatus = "incomplete"
)

// AudioVoice selects the voice pack used for spoken feedback clips.
type AudioVoice string

const (
	VoiceMale   AudioVoice = "male"
	VoiceFemale AudioVoice = "female"
)

// Session is one execution of a Course against a Team's athlete queue.
type Session struct {
	ID            string
	TeamID        string
	CourseID      string
	Status        SessionStatus
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	AudioVoice    AudioVoice
	PatternConfig *PatternConfig // override of course/default pattern parameters
	Notes         string
}

// PatternConfig carries the effective pattern-generator parameters for a
// session, optionally overriding course defaults (spec §3, §4.G.1).
type PatternConfig struct {
	SequenceLength         int
	AllowRepeats            bool
	ErrorFeedbackDurationMS int
	DebounceMS              int
}

// DefaultPatternConfig returns the engine's built-in defaults (spec §4.G.8,
// §9 boundary behaviors).
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		SequenceLength:          4,
		AllowRepeats:            true,
		ErrorFeedbackDurationMS: 4000,
		DebounceMS:              1000,
	}
}

// RunStatus is the lifecycle state of a single athlete's attempt.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunRunning    RunStatus = "running"
	RunCompleted  RunStatus = "completed"
	RunIncomplete RunStatus = "incomplete"
	RunDropped    RunStatus = "dropped"
	RunAbsent     RunStatus = "absent"
)

// Run is one athlete's attempt within a Session.
type Run struct {
	ID            string
	SessionID     string
	AthleteID     string
	AthleteName   string
	QueuePosition int
	Status        RunStatus
	StartedAt     *time.Time
	TimerStartAt  *time.Time // Pattern mode only: when the GO beep played
	CompletedAt   *time.Time
	TotalTime     float64
}

// AlertType classifies why a Segment was flagged during attribution.
type AlertType string

const (
	AlertNone        AlertType = ""
	AlertMissedTouch AlertType = "missed_touch"
	AlertTooFast     AlertType = "too_fast"
	AlertTooSlow     AlertType = "too_slow"
)

// Segment is one expected device-to-device traversal within a Run.
type Segment struct {
	ID               string
	RunID            string
	Sequence         int
	FromDevice       string
	ToDevice         string
	ExpectedMinTime  float64
	ExpectedMaxTime  float64
	ActualTime       *float64
	CumulativeTime   *float64
	TouchDetected    bool
	TouchTimestamp   *time.Time
	AlertRaised      bool
	AlertType        AlertType
}
