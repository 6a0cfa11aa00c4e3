package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/telemetry"
)

// StopSession ends a session early: every running run becomes incomplete,
// the session becomes incomplete with notes=reason, assignments are
// cleared, and the course returns to Deployed with every cone stopped and
// set to amber (spec §4.G.10).
func (e *Engine) StopSession(ctx context.Context, sessionID, reason string) error {
	ctx, span := e.tracer.Start(ctx, "session.lifecycle_stop", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes(sessionID, "")...)

	e.mu.Lock()
	st := e.state
	if st == nil || st.SessionID != sessionID {
		e.mu.Unlock()
		err := fmt.Errorf("session: stop: %s is not the active session", sessionID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no active session")
		return err
	}
	runIDs := make([]string, 0, len(st.ActiveRuns))
	for id := range st.ActiveRuns {
		runIDs = append(runIDs, id)
	}
	e.mu.Unlock()

	now := e.clock.Now()
	for _, runID := range runIDs {
		if err := e.store.CompleteRun(ctx, runID, now, 0, domain.RunIncomplete); err != nil {
			e.log.Warn().Str("event", "session.stop_complete_run_failed").Err(err).Msg("failed to mark run incomplete on stop")
		}
	}
	if err := e.store.CompleteSession(ctx, sessionID, domain.SessionIncomplete, reason); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete_session failed")
		return fmt.Errorf("session: stop: %w", err)
	}

	assignments := e.registry.Assignments()
	e.registry.ClearAssignments()
	for nodeID := range assignments {
		if nodeID == domain.ControllerDeviceID {
			continue
		}
		e.emitter.Stop(nodeID, amberPattern)
		e.emitter.SetLED(nodeID, amberPattern)
	}
	e.emitter.SetLED(domain.ControllerDeviceID, amberPattern)

	e.mu.Lock()
	if e.state == st {
		e.state = nil
	}
	e.mu.Unlock()
	return nil
}

// NextAthlete manually advances to the next pattern-mode athlete (spec
// §4.I session.next_athlete). Normally handled implicitly by step
// validation; this is exposed for operator-initiated skip.
func (e *Engine) NextAthlete(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	st := e.state
	if st == nil || st.SessionID != sessionID || st.CourseMode != domain.ModePattern {
		e.mu.Unlock()
		return fmt.Errorf("session: next_athlete: no active pattern-mode session %s", sessionID)
	}
	active := activeRun(st)
	e.mu.Unlock()
	if active == nil {
		return fmt.Errorf("session: next_athlete: no currently active athlete")
	}

	now := e.clock.Now()
	if err := e.store.CompleteRun(ctx, active.RunID, now, 0, domain.RunDropped); err != nil {
		e.log.Warn().Str("event", "session.next_athlete_complete_failed").Err(err).Msg("complete_run failed")
	}
	e.advanceOrComplete(ctx, st, active.RunID)
	return nil
}

// Status returns a snapshot of the current active session's engine-level
// state for spec §4.I session.status.
type Status struct {
	SessionID     string
	CourseMode    domain.CourseMode
	PatternLength int
	ActiveRun     *ActiveRunView
}

// ActiveRunView is a read-only copy of one active run for status queries.
type ActiveRunView struct {
	RunID           string
	AthleteName     string
	QueuePosition   int
	SequencePosition int
	PatternData     *domain.PatternData
}

// Status reports the engine's current session, if any.
func (e *Engine) Status() *Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil
	}
	st := e.state
	out := &Status{SessionID: st.SessionID, CourseMode: st.CourseMode}
	if st.CourseMode == domain.ModePattern {
		out.PatternLength = st.PatternConfig.SequenceLength
	}
	if ar := activeRun(st); ar != nil {
		out.ActiveRun = &ActiveRunView{
			RunID:            ar.RunID,
			AthleteName:      ar.AthleteName,
			QueuePosition:    ar.QueuePosition,
			SequencePosition: ar.SequencePos,
			PatternData:      ar.PatternData,
		}
	}
	return out
}
