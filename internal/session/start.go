package session

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldcone/controller/internal/command"
	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/store"
	"github.com/fieldcone/controller/internal/telemetry"
)

// patternStepPause is the buffered wait after each chase command during
// pattern display; clients auto-terminate a chase after 3s, the extra 2s
// absorbs network variance (spec §4.G.6 step 2).
const patternStepPause = 5 * time.Second

// betweenAthletesPause is the fixed pause between athletes in pattern
// mode (spec §4.G.9 step 3).
const betweenAthletesPause = 2 * time.Second

// StartSession begins a session: starts the first run (Sequential) or all
// runs (Pattern), derives device_sequence and course_mode, and for
// Pattern mode generates and displays the first athlete's pattern (spec
// §4.G.2).
func (e *Engine) StartSession(ctx context.Context, sessionID string) error {
	ctx, span := e.tracer.Start(ctx, "session.lifecycle_start", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes(sessionID, "")...)

	if err := e.store.StartSession(ctx, sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store start_session failed")
		return fmt.Errorf("session: start: %w", err)
	}

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load session failed")
		return fmt.Errorf("session: start: load session: %w", err)
	}
	course, err := e.store.GetCourse(ctx, sess.CourseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load course failed")
		return fmt.Errorf("session: start: load course: %w", err)
	}
	span.SetAttributes(telemetry.SessionAttributes(sessionID, string(course.Mode))...)

	patternCfg := domain.DefaultPatternConfig()
	if sess.PatternConfig != nil {
		patternCfg = *sess.PatternConfig
	}

	st := &State{
		SessionID:     sessionID,
		CourseMode:    course.Mode,
		ActiveRuns:    make(map[string]*runInfo),
		PatternConfig: patternCfg,
		Course:        *course,
	}

	if course.Mode == domain.ModePattern {
		if err := e.startPatternMode(ctx, st, sessionID, *course, patternCfg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "start pattern mode failed")
			return err
		}
	} else {
		if err := e.startSequentialMode(ctx, st, sessionID, *course); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "start sequential mode failed")
			return err
		}
	}

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	return nil
}

func (e *Engine) startSequentialMode(ctx context.Context, st *State, sessionID string, course domain.Course) error {
	st.DeviceSequence = deviceSequence(course)

	first, err := e.store.GetNextQueuedRun(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session: start: no queued run: %w", err)
	}
	now := e.clock.Now()
	if err := e.store.StartRun(ctx, first.ID, now); err != nil {
		return fmt.Errorf("session: start: %w", err)
	}
	if err := e.store.CreateSegmentsForRun(ctx, first.ID, course); err != nil {
		return fmt.Errorf("session: start: segments: %w", err)
	}

	ri := newRunInfo(*first)
	ri.IsActive = true
	st.ActiveRuns[first.ID] = ri

	if len(course.Actions) > 0 {
		e.emitter.PlayAudio(domain.ControllerDeviceID, course.Actions[0].AudioClip)
	}
	return nil
}

func (e *Engine) startPatternMode(ctx context.Context, st *State, sessionID string, course domain.Course, cfg domain.PatternConfig) error {
	runs, err := e.store.ListRuns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session: start: list runs: %w", err)
	}
	colored := coloredDevices(course)

	now := e.clock.Now()
	var prev []string
	for i, r := range runs {
		if err := e.store.StartRun(ctx, r.ID, now); err != nil {
			return fmt.Errorf("session: start: %w", err)
		}
		pd := e.generatePattern(colored, cfg, prev)
		if err := e.store.CreatePatternSegmentsForRun(ctx, r.ID, pd.DeviceIDs); err != nil {
			return fmt.Errorf("session: start: pattern segments: %w", err)
		}
		ri := newRunInfo(r)
		ri.PatternData = &pd
		st.ActiveRuns[r.ID] = ri
		prev = pd.DeviceIDs

		if i == 0 {
			ri.IsActive = true
			st.DeviceSequence = pd.DeviceIDs
		}
	}

	first := firstByQueuePosition(st.ActiveRuns)
	if first == nil {
		return nil
	}
	e.logOperator(ctx, "info", fmt.Sprintf("pattern for %s: %s", first.AthleteName, first.PatternData.Description))
	e.displayPattern(ctx, st, first)
	return nil
}

func firstByQueuePosition(runs map[string]*runInfo) *runInfo {
	var best *runInfo
	for _, r := range runs {
		if best == nil || r.QueuePosition < best.QueuePosition {
			best = r
		}
	}
	return best
}

// displayPattern runs the pattern display sequence (spec §4.G.6). Called
// with e.mu held for Sequential-equivalent bookkeeping is NOT required
// here since StartSession/advance call it before publishing state (no
// other goroutine can see st yet) or, from advanceOrComplete, with the
// lock released for the duration of the sleeps per spec §4.H.
func (e *Engine) displayPattern(ctx context.Context, st *State, ri *runInfo) {
	e.emitter.PlayAudio(domain.ControllerDeviceID, "pattern_intro")

	for _, d := range ri.PatternData.Devices {
		e.emitter.SetLED(d.DeviceID, command.ChaseForColor(d.Color))
		e.clock.Sleep(patternStepPause)
	}

	for _, d := range ri.PatternData.Devices {
		e.registry.RecordCommandedState(d.DeviceID, string(command.SolidForColor(d.Color)), "")
	}

	e.emitter.PlayAudio(domain.ControllerDeviceID, "go")

	now := e.clock.Now()
	ri.TimerStart = &now
	if err := e.store.UpdateRunTimerStart(ctx, ri.RunID, now); err != nil {
		e.log.Warn().Str("event", "session.timer_start_persist_failed").Err(err).Msg("failed to persist timer_start")
	}
}

func (e *Engine) logOperator(ctx context.Context, level, message string) {
	if err := e.store.AppendOperatorLog(ctx, store.OperatorLogEntry{
		Timestamp: e.clock.Now(),
		Level:     level,
		Source:    "session",
		Message:   message,
	}); err != nil {
		e.log.Warn().Str("event", "session.operator_log_failed").Err(err).Msg("failed to append operator log")
	}
	e.log.Info().Str("event", "session.log").Str("level", level).Msg(message)
}
