package session

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/telemetry"
)

// HandleTouch implements heartbeat.TouchHandler: high-level dispatch (spec
// §4.G.3). No session, drop; controller device in pattern mode routes to
// submission; any other device in pattern mode routes to step validation;
// otherwise sequential attribution.
func (e *Engine) HandleTouch(ctx context.Context, deviceID string, at time.Time) {
	ctx, span := e.tracer.Start(ctx, "session.touch_attribution",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(telemetry.TouchAttributes(deviceID, -1, "dispatch", "pending")...),
	)
	defer span.End()

	e.mu.Lock()
	st := e.state
	if st == nil {
		e.mu.Unlock()
		span.SetAttributes(telemetry.TouchAttributes(deviceID, -1, "dispatch", "dropped_no_session")...)
		e.log.Debug().Str("event", "session.touch_dropped_no_session").Str("device_id", deviceID).Msg("touch dropped, no active session")
		return
	}
	span.SetAttributes(telemetry.SessionAttributes(st.SessionID, string(st.CourseMode))...)

	if deviceID == domain.ControllerDeviceID && st.CourseMode == domain.ModePattern {
		span.SetAttributes(telemetry.TouchAttributes(deviceID, -1, "pattern_submit", "dispatched")...)
		e.submitPatternLocked(ctx, st, at)
		return
	}
	if st.CourseMode == domain.ModePattern {
		span.SetAttributes(telemetry.TouchAttributes(deviceID, -1, "pattern_step", "dispatched")...)
		e.validatePatternStepLocked(ctx, st, deviceID, at)
		return
	}
	span.SetAttributes(telemetry.TouchAttributes(deviceID, -1, "sequential", "dispatched")...)
	e.attributeSequentialLocked(ctx, st, deviceID, at)
}
