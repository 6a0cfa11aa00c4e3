package session

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/registry"
	"github.com/fieldcone/controller/internal/telemetry"
)

// advanceOrComplete marks finishedRunID no longer active and moves on to
// the next pattern-mode athlete, or completes the session if none remain
// (spec §4.G.9).
func (e *Engine) advanceOrComplete(ctx context.Context, st *State, finishedRunID string) {
	e.mu.Lock()
	if r, ok := st.ActiveRuns[finishedRunID]; ok {
		r.IsActive = false
	}
	delete(st.ActiveRuns, finishedRunID)

	var next *runInfo
	for _, r := range st.ActiveRuns {
		if r.PatternData == nil || r.IsActive {
			continue
		}
		if next == nil || r.QueuePosition < next.QueuePosition {
			next = r
		}
	}
	e.mu.Unlock()

	if next == nil {
		e.completeSession(ctx, st)
		return
	}

	e.restoreAssignedColors(next.PatternData.Devices)
	e.clock.Sleep(betweenAthletesPause)

	e.mu.Lock()
	next.IsActive = true
	st.DeviceSequence = next.PatternData.DeviceIDs
	e.mu.Unlock()

	e.logOperator(ctx, "info", "pattern for "+next.AthleteName+": "+next.PatternData.Description)
	e.displayPattern(ctx, st, next)
}

// completeSession marks the session completed, returns the course to
// Deployed (amber on all assigned cones), and clears active session state
// (spec §4.G.9/§4.G.4 step 10).
func (e *Engine) completeSession(ctx context.Context, st *State) {
	ctx, span := e.tracer.Start(ctx, "session.lifecycle_complete", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes(st.SessionID, string(st.CourseMode))...)

	if err := e.store.CompleteSession(ctx, st.SessionID, domain.SessionCompleted, ""); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete_session failed")
		e.log.Warn().Str("event", "session.complete_session_failed").Err(err).Msg("complete_session failed")
	}
	e.returnToDeployed(st)

	e.mu.Lock()
	if e.state == st {
		e.state = nil
	}
	e.mu.Unlock()
}

// returnToDeployed transitions the Registry's course_status back to
// Deployed and sets every assigned cone's LED to amber, plus the
// controller's own (spec §4.G.4 step 10, §4.G.10).
func (e *Engine) returnToDeployed(st *State) {
	_, courseID := e.registry.CourseState()
	e.registry.SetCourseState(registry.Deployed, courseID)
	for nodeID := range e.registry.Assignments() {
		e.emitter.SetLED(nodeID, amberPattern)
	}
}

const amberPattern = "solid_amber"
