// Package facade implements the Query/Command Facade (spec §4.I): a
// small, language-neutral RPC surface used by the UI and by the engine
// itself for self-dispatch.
package facade

import (
	"context"
	"fmt"

	"github.com/fieldcone/controller/internal/course"
	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/registry"
	"github.com/fieldcone/controller/internal/session"
	"github.com/fieldcone/controller/internal/store"
)

// SessionCreateResult is the return value of Facade.SessionCreate.
type SessionCreateResult struct {
	SessionID string `json:"session_id"`
}

// SessionStartResult is the return value of Facade.SessionStart.
type SessionStartResult struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	CurrentRun *domain.Run  `json:"current_run,omitempty"`
}

// SessionStatusResult is the return value of Facade.SessionStatus.
type SessionStatusResult struct {
	Session       *domain.Session        `json:"session"`
	CourseMode    domain.CourseMode      `json:"course_mode"`
	PatternLength int                    `json:"pattern_length,omitempty"`
	PatternData   *domain.PatternData    `json:"pattern_data,omitempty"`
	ActiveRun     *session.ActiveRunView `json:"active_run,omitempty"`
}

// Facade is the composition point between the UI-facing transport and the
// core components.
type Facade struct {
	store     *store.Store
	registry  *registry.Registry
	session   *session.Engine
	lifecycle *course.Lifecycle
}

// New creates a Facade over the wired core components.
func New(st *store.Store, reg *registry.Registry, eng *session.Engine, lc *course.Lifecycle) *Facade {
	return &Facade{store: st, registry: reg, session: eng, lifecycle: lc}
}

// SessionCreate implements session.create.
func (f *Facade) SessionCreate(ctx context.Context, teamID, courseID string, athletes []domain.Athlete, voice domain.AudioVoice, patternCfg *domain.PatternConfig) (SessionCreateResult, error) {
	id, err := f.store.CreateSession(ctx, teamID, courseID, athletes, voice, patternCfg)
	if err != nil {
		return SessionCreateResult{}, fmt.Errorf("facade: session.create: %w", err)
	}
	return SessionCreateResult{SessionID: id}, nil
}

// SessionStart implements session.start.
func (f *Facade) SessionStart(ctx context.Context, sessionID string) SessionStartResult {
	if err := f.session.StartSession(ctx, sessionID); err != nil {
		return SessionStartResult{Success: false, Message: err.Error()}
	}
	runs, err := f.store.ListRuns(ctx, sessionID)
	var current *domain.Run
	if err == nil {
		for i := range runs {
			if runs[i].Status == domain.RunRunning {
				current = &runs[i]
				break
			}
		}
	}
	return SessionStartResult{Success: true, Message: "session started", CurrentRun: current}
}

// SessionStop implements session.stop.
func (f *Facade) SessionStop(ctx context.Context, sessionID, reason string) (bool, string) {
	if err := f.session.StopSession(ctx, sessionID, reason); err != nil {
		return false, err.Error()
	}
	return true, "session stopped"
}

// SessionNextAthlete implements session.next_athlete.
func (f *Facade) SessionNextAthlete(ctx context.Context, sessionID string) (bool, string) {
	if err := f.session.NextAthlete(ctx, sessionID); err != nil {
		return false, err.Error()
	}
	return true, "advanced to next athlete"
}

// SessionStatus implements session.status.
func (f *Facade) SessionStatus(ctx context.Context, sessionID string) (SessionStatusResult, error) {
	sess, err := f.store.GetSession(ctx, sessionID)
	if err != nil {
		return SessionStatusResult{}, fmt.Errorf("facade: session.status: %w", err)
	}
	out := SessionStatusResult{Session: sess}
	st := f.session.Status()
	if st != nil && st.SessionID == sessionID {
		out.CourseMode = st.CourseMode
		out.PatternLength = st.PatternLength
		out.ActiveRun = st.ActiveRun
		if st.ActiveRun != nil {
			out.PatternData = st.ActiveRun.PatternData
		}
	}
	return out, nil
}

// SessionContinueResult is the return value of Facade.SessionContinue.
type SessionContinueResult struct {
	NewSessionID  string `json:"new_session_id"`
	PatternLength int    `json:"pattern_length"`
	AthleteCount  int    `json:"athlete_count"`
}

// SessionContinue implements session.continue.
func (f *Facade) SessionContinue(ctx context.Context, sessionID string) (SessionContinueResult, error) {
	id, length, count, err := f.session.Continue(ctx, sessionID)
	if err != nil {
		return SessionContinueResult{}, fmt.Errorf("facade: session.continue: %w", err)
	}
	return SessionContinueResult{NewSessionID: id, PatternLength: length, AthleteCount: count}, nil
}

// SessionRepeat implements session.repeat.
func (f *Facade) SessionRepeat(ctx context.Context, sessionID string) (string, error) {
	id, err := f.session.Repeat(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("facade: session.repeat: %w", err)
	}
	return id, nil
}

// CourseDeploy implements course.deploy.
func (f *Facade) CourseDeploy(ctx context.Context, courseName string) (*domain.Course, error) {
	c, err := f.store.GetCourseByName(ctx, courseName)
	if err != nil {
		return nil, fmt.Errorf("facade: course.deploy: %w", err)
	}
	return f.lifecycle.Deploy(ctx, c.ID)
}

// CourseActivate implements course.activate.
func (f *Facade) CourseActivate(ctx context.Context) error {
	if err := f.lifecycle.Activate(ctx); err != nil {
		return fmt.Errorf("facade: course.activate: %w", err)
	}
	return nil
}

// CourseDeactivate implements course.deactivate.
func (f *Facade) CourseDeactivate(ctx context.Context) error {
	if err := f.lifecycle.Deactivate(ctx); err != nil {
		return fmt.Errorf("facade: course.deactivate: %w", err)
	}
	return nil
}

// RegistrySnapshot implements registry.snapshot.
func (f *Facade) RegistrySnapshot() []registry.Snapshot {
	return f.registry.Snapshot()
}

// RegistryLogs implements registry.logs(limit).
func (f *Facade) RegistryLogs(ctx context.Context, limit int) ([]store.OperatorLogEntry, error) {
	return f.store.RecentOperatorLog(ctx, limit)
}
