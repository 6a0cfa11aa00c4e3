package session

import (
	"context"
	"time"

	"github.com/fieldcone/controller/internal/command"
	"github.com/fieldcone/controller/internal/domain"
)

// errorFeedbackPause is the fixed pause before the error beep during
// wrong-device feedback (spec §4.G.8 step 6).
const errorFeedbackPause = 500 * time.Millisecond

// successFeedbackDuration is the fixed wait for the success chase to
// complete client-side (spec §4.G.7 step 4, "sleep 3.5s").
const successFeedbackDuration = 3500 * time.Millisecond

// commandStagger is the pause between sequential per-cone commands during
// feedback animations, avoiding TCP congestion (spec §4.G.7/§4.G.8).
const commandStagger = 300 * time.Millisecond

// submitPatternLocked handles a touch on the controller device while in
// pattern mode (spec §4.G.7). Called with e.mu held.
func (e *Engine) submitPatternLocked(ctx context.Context, st *State, at time.Time) {
	active := activeRun(st)
	if active == nil {
		e.mu.Unlock()
		return
	}
	if active.PatternData == nil {
		e.mu.Unlock()
		return
	}
	complete := active.SequencePos+1 == len(active.PatternData.DeviceIDs)
	e.mu.Unlock()

	if !complete {
		e.log.Debug().Str("event", "session.pattern_submit_early").Str("run_id", active.RunID).Msg("pattern incomplete, ignoring early submission")
		return
	}

	e.emitter.PlayAudio(domain.ControllerDeviceID, "success")

	e.mu.Lock()
	st.ErrorFeedback = true
	e.mu.Unlock()

	for i, d := range active.PatternData.Devices {
		e.emitter.SetLED(d.DeviceID, command.LEDChaseGreen)
		if i < len(active.PatternData.Devices)-1 {
			e.clock.Sleep(commandStagger)
		}
	}
	e.clock.Sleep(successFeedbackDuration)
	e.restoreAssignedColors(active.PatternData.Devices)

	e.mu.Lock()
	st.ErrorFeedback = false
	e.mu.Unlock()

	var completionTime float64
	if active.TimerStart != nil {
		completionTime = at.Sub(*active.TimerStart).Seconds()
	}
	if err := e.store.CompleteRun(ctx, active.RunID, at, completionTime, domain.RunCompleted); err != nil {
		e.log.Warn().Str("event", "session.complete_run_failed").Err(err).Msg("complete_run failed")
	}

	e.advanceOrComplete(ctx, st, active.RunID)
}

// validatePatternStepLocked handles a touch on a colored cone while in
// pattern mode (spec §4.G.8). Called with e.mu held.
func (e *Engine) validatePatternStepLocked(ctx context.Context, st *State, deviceID string, at time.Time) {
	active := activeRun(st)
	if active == nil || st.ErrorFeedback {
		e.mu.Unlock()
		return
	}

	if !active.lastTouchTime.IsZero() && at.Sub(active.lastTouchTime) < globalDebounceMS*time.Millisecond {
		e.mu.Unlock()
		return
	}

	expectedPos := active.SequencePos + 1
	debounceWindow := time.Duration(st.PatternConfig.DebounceMS) * time.Millisecond
	if lastTouch, ok := active.perDeviceTouch[deviceID]; ok && at.Sub(lastTouch) < debounceWindow {
		if step, ok := active.perDeviceStep[deviceID]; ok && step == expectedPos {
			e.mu.Unlock()
			return // hardware bounce on the same step
		}
		// within window but a different step: intentional repeat, allow through
	}

	if expectedPos >= len(active.PatternData.DeviceIDs) {
		e.mu.Unlock()
		return
	}

	expectedDevice := active.PatternData.DeviceIDs[expectedPos]
	if deviceID != expectedDevice {
		e.mu.Unlock()
		e.handleWrongStep(ctx, st, active, at)
		return
	}

	active.SequencePos = expectedPos
	active.lastTouchTime = at
	active.perDeviceTouch[deviceID] = at
	active.perDeviceStep[deviceID] = expectedPos
	runID := active.RunID
	e.mu.Unlock()

	if _, err := e.store.RecordTouch(ctx, runID, deviceID, at); err != nil {
		e.log.Warn().Str("event", "session.record_touch_failed").Err(err).Msg("record_touch failed")
	}
	if expectedPos == len(active.PatternData.DeviceIDs)-1 {
		e.log.Debug().Str("event", "session.pattern_final_step").Str("run_id", runID).Msg("touch start device to submit")
	}
}

// handleWrongStep drives the error-feedback animation and completes the
// run as incomplete (spec §4.G.8 "Wrong device").
func (e *Engine) handleWrongStep(ctx context.Context, st *State, active *runInfo, at time.Time) {
	e.mu.Lock()
	st.ErrorFeedback = true
	e.mu.Unlock()

	for i, d := range active.PatternData.Devices {
		e.emitter.SetLED(d.DeviceID, command.LEDChaseRed)
		if i < len(active.PatternData.Devices)-1 {
			e.clock.Sleep(commandStagger)
		}
	}
	e.clock.Sleep(errorFeedbackPause)
	e.emitter.PlayAudio(domain.ControllerDeviceID, "error")
	e.clock.Sleep(time.Duration(st.PatternConfig.ErrorFeedbackDurationMS) * time.Millisecond)
	e.restoreAssignedColors(active.PatternData.Devices)

	e.mu.Lock()
	st.ErrorFeedback = false
	e.mu.Unlock()

	var completionTime float64
	if active.TimerStart != nil {
		completionTime = at.Sub(*active.TimerStart).Seconds()
	}
	if err := e.store.CompleteRun(ctx, active.RunID, at, completionTime, domain.RunIncomplete); err != nil {
		e.log.Warn().Str("event", "session.complete_run_failed").Err(err).Msg("complete_run failed")
	}

	e.advanceOrComplete(ctx, st, active.RunID)
}

func (e *Engine) restoreAssignedColors(devices []domain.ColoredDevice) {
	for _, d := range devices {
		e.registry.RecordCommandedState(d.DeviceID, string(command.SolidForColor(d.Color)), "")
	}
}

func activeRun(st *State) *runInfo {
	for _, r := range st.ActiveRuns {
		if r.IsActive {
			return r
		}
	}
	return nil
}
