// Package session implements the Session Engine and its Attribution &
// Debounce submodule (spec §4.G, §4.H): multi-athlete orchestration
// against a deployed course in Sequential or Pattern mode.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	xgclock "github.com/fieldcone/controller/internal/clock"
	"github.com/fieldcone/controller/internal/command"
	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/registry"
	"github.com/fieldcone/controller/internal/store"
	"github.com/fieldcone/controller/internal/telemetry"
)

// MaxConcurrentRuns bounds how many athletes Sequential mode keeps active
// at once, an unadvertised 5-run cap in the original implementation now
// surfaced as a named package constant (spec §9 Open Questions). It is
// fixed at build time; the config's max_concurrent_runs value is not read.
const MaxConcurrentRuns = 5

// globalDebounceMS is the fixed 500ms "any device" debounce applied
// regardless of the per-step configurable window (spec §4.G.8 step 3).
const globalDebounceMS = 500

// Store is the persistence seam the Session Engine depends on.
type Store interface {
	StartSession(ctx context.Context, sessionID string) error
	CompleteSession(ctx context.Context, sessionID string, status domain.SessionStatus, notes string) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	GetNextQueuedRun(ctx context.Context, sessionID string) (*domain.Run, error)
	ListRuns(ctx context.Context, sessionID string) ([]domain.Run, error)
	StartRun(ctx context.Context, runID string, at time.Time) error
	UpdateRunTimerStart(ctx context.Context, runID string, at time.Time) error
	CompleteRun(ctx context.Context, runID string, at time.Time, totalTime float64, status domain.RunStatus) error
	CreateSegmentsForRun(ctx context.Context, runID string, course domain.Course) error
	CreatePatternSegmentsForRun(ctx context.Context, runID string, patternDeviceIDs []string) error
	RecordTouch(ctx context.Context, runID, deviceID string, at time.Time) (string, error)
	MarkSegmentMissed(ctx context.Context, segmentID string) error
	CheckSegmentAlerts(ctx context.Context, segmentID string) error
	ListSegments(ctx context.Context, runID string) ([]domain.Segment, error)
	CreateSession(ctx context.Context, teamID, courseID string, athleteQueue []domain.Athlete, voice domain.AudioVoice, patternCfg *domain.PatternConfig) (string, error)
	AppendOperatorLog(ctx context.Context, e store.OperatorLogEntry) error
}

// runInfo is the Session Engine's in-memory view of one active athlete
// (spec §4.G.1 RunInfo).
type runInfo struct {
	RunID           string
	AthleteName     string
	QueuePosition   int
	SequencePos     int // -1 = not yet touched any device
	LastDevice      string
	IsActive        bool // Pattern mode: whether this is the currently running athlete
	PatternData     *domain.PatternData
	TimerStart      *time.Time
	lastTouchTime   time.Time
	perDeviceTouch  map[string]time.Time
	perDeviceStep   map[string]int
}

// State is the single process-wide active-session structure (spec §4.G.1).
// Every field is guarded by mu; Engine methods hold mu for the whole
// categorize-pick-write critical section and release it only around
// Store calls and LED-animation sleeps, per spec §4.H.
type State struct {
	SessionID      string
	CourseMode     domain.CourseMode
	DeviceSequence []string // Sequential: course order; Pattern: current athlete's steps
	ActiveRuns     map[string]*runInfo
	PatternConfig  domain.PatternConfig
	ErrorFeedback  bool
	PrevPattern    []string // for back-to-back distinct pattern generation
	Course         domain.Course
}

// Engine owns the Session Engine's mutable state and drives it against
// the Store, Registry, and Command Emitter.
type Engine struct {
	mu    sync.Mutex
	state *State

	store    Store
	registry *registry.Registry
	emitter  *command.Emitter
	clock    xgclock.Clock
	rng      *rand.Rand
	log      zerolog.Logger
	tracer   trace.Tracer
}

// New creates an Engine with no active session.
func New(store Store, reg *registry.Registry, emitter *command.Emitter, c xgclock.Clock, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		registry: reg,
		emitter:  emitter,
		clock:    c,
		rng:      rand.New(rand.NewSource(1)),
		log:      logger.With().Str("component", "session").Logger(),
		tracer:   telemetry.Tracer("fieldcone.session"),
	}
}

// HasActiveSession reports whether a session is currently running,
// without exposing internal state.
func (e *Engine) HasActiveSession() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != nil
}

func newRunInfo(r domain.Run) *runInfo {
	return &runInfo{
		RunID:          r.ID,
		AthleteName:    r.AthleteName,
		QueuePosition:  r.QueuePosition,
		SequencePos:    -1,
		perDeviceTouch: make(map[string]time.Time),
		perDeviceStep:  make(map[string]int),
	}
}

func deviceSequence(course domain.Course) []string {
	out := make([]string, 0, len(course.Actions))
	for _, a := range course.Actions {
		if !a.IsController() {
			out = append(out, a.DeviceID)
		}
	}
	return out
}

func indexOf(devices []string, id string) int {
	for i, d := range devices {
		if d == id {
			return i
		}
	}
	return -1
}
