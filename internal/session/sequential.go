package session

import (
	"context"
	"time"

	"github.com/fieldcone/controller/internal/domain"
)

// attributeSequentialLocked implements Sequential attribution (spec
// §4.G.4). Called with e.mu held by HandleTouch; per §4.H the lock is
// held through categorize → pick → write sequence_position → record_touch
// so two simultaneous touches on the same expected device cannot both be
// credited. The lock is released before the remaining steps (alert check,
// next-athlete start, completion), which are not part of that race.
func (e *Engine) attributeSequentialLocked(ctx context.Context, st *State, deviceID string, at time.Time) {
	devicePos := indexOf(st.DeviceSequence, deviceID)
	if devicePos < 0 {
		e.mu.Unlock()
		e.log.Debug().Str("event", "session.touch_rejected_unknown_device").Str("device_id", deviceID).Msg("touch on unrecognized device")
		return
	}

	var priority1, priority2 []*runInfo
	for _, r := range st.ActiveRuns {
		gap := devicePos - r.SequencePos
		switch {
		case gap == 1:
			priority1 = append(priority1, r)
		case gap > 1:
			priority2 = append(priority2, r)
		}
	}

	chosen := pickPriority1(priority1)
	if chosen == nil {
		chosen = pickPriority2(priority2, devicePos)
	}
	if chosen == nil {
		e.mu.Unlock()
		e.log.Debug().Str("event", "session.touch_rejected_no_candidate").Str("device_id", deviceID).Msg("no active run expects this device")
		return
	}

	skippedFrom := chosen.SequencePos + 1
	skippedTo := devicePos // exclusive
	runID := chosen.RunID

	segmentID, err := e.store.RecordTouch(ctx, runID, deviceID, at)
	if err != nil {
		e.mu.Unlock()
		e.log.Warn().Str("event", "session.record_touch_failed").Err(err).Msg("record_touch failed")
		return
	}
	if segmentID != "" {
		chosen.SequencePos = devicePos
		chosen.LastDevice = deviceID
	}
	e.mu.Unlock()

	if skippedTo > skippedFrom {
		e.markMissedRange(ctx, runID, skippedFrom, skippedTo)
	}
	if segmentID == "" {
		return
	}
	if err := e.store.CheckSegmentAlerts(ctx, segmentID); err != nil {
		e.log.Warn().Str("event", "session.check_alerts_failed").Err(err).Msg("check_segment_alerts failed")
	}

	action := st.Course.Actions[actionIndexForDevice(st.Course, deviceID)]
	if action.TriggersNextAthlete {
		e.tryStartNextRun(ctx, st)
	}
	if action.MarksRunComplete {
		e.completeSequentialRun(ctx, st, runID)
	}
}

// pickPriority1 chooses the smallest queue_position among gap==1
// candidates (spec §4.G.4 step 4).
func pickPriority1(candidates []*runInfo) *runInfo {
	return smallestQueuePosition(candidates)
}

// pickPriority2 chooses, among gap>1 candidates, smallest gap first then
// smallest queue_position (spec §4.G.4 step 5).
func pickPriority2(candidates []*runInfo, devicePos int) *runInfo {
	var best *runInfo
	bestGap := 0
	for _, c := range candidates {
		gap := devicePos - c.SequencePos
		switch {
		case best == nil:
			best, bestGap = c, gap
		case gap < bestGap:
			best, bestGap = c, gap
		case gap == bestGap && c.QueuePosition < best.QueuePosition:
			best, bestGap = c, gap
		}
	}
	return best
}

func smallestQueuePosition(candidates []*runInfo) *runInfo {
	var best *runInfo
	for _, c := range candidates {
		if best == nil || c.QueuePosition < best.QueuePosition {
			best = c
		}
	}
	return best
}

func actionIndexForDevice(course domain.Course, deviceID string) int {
	for i, a := range course.Actions {
		if a.DeviceID == deviceID {
			return i
		}
	}
	return 0
}

func (e *Engine) markMissedRange(ctx context.Context, runID string, from, to int) {
	// Segment sequence numbers line up with device_sequence indices
	// (segment i connects device_sequence[i-1] -> device_sequence[i], and
	// segment 0 starts at the controller); the skipped segments are those
	// whose to_device index falls in [from, to).
	segs, err := e.store.ListSegments(ctx, runID)
	if err != nil {
		e.log.Warn().Str("event", "session.list_segments_failed").Err(err).Msg("failed to list segments for missed-range marking")
		return
	}
	for _, seg := range segs {
		if seg.Sequence >= from && seg.Sequence < to && !seg.TouchDetected {
			if err := e.store.MarkSegmentMissed(ctx, seg.ID); err != nil {
				e.log.Warn().Str("event", "session.mark_missed_failed").Err(err).Msg("mark_segment_missed failed")
			}
		}
	}
}

// tryStartNextRun atomically starts the next queued run when a
// triggers_next_athlete action fires, guarded by both the in-memory
// active-run count and Store's queued-status check (spec §4.G.4 step 9).
func (e *Engine) tryStartNextRun(ctx context.Context, st *State) {
	e.mu.Lock()
	if len(st.ActiveRuns) >= MaxConcurrentRuns {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	next, err := e.store.GetNextQueuedRun(ctx, st.SessionID)
	if err != nil {
		return // none queued
	}
	now := e.clock.Now()
	if err := e.store.StartRun(ctx, next.ID, now); err != nil {
		return // lost the race to another starter
	}
	if err := e.store.CreateSegmentsForRun(ctx, next.ID, st.Course); err != nil {
		e.log.Warn().Str("event", "session.create_segments_failed").Err(err).Msg("failed to create segments for new run")
		return
	}

	e.mu.Lock()
	st.ActiveRuns[next.ID] = newRunInfo(*next)
	e.mu.Unlock()

	if len(st.Course.Actions) > 0 {
		e.emitter.PlayAudio(domain.ControllerDeviceID, st.Course.Actions[0].AudioClip)
	}
}

// completeSequentialRun sums actual_time across touched segments and
// completes the run (spec §4.G.4 step 9/10).
func (e *Engine) completeSequentialRun(ctx context.Context, st *State, runID string) {
	segs, err := e.store.ListSegments(ctx, runID)
	if err != nil {
		e.log.Warn().Str("event", "session.list_segments_failed").Err(err).Msg("failed to total segment times")
	}
	var total float64
	for _, seg := range segs {
		if seg.ActualTime != nil {
			total += *seg.ActualTime
		}
	}
	now := e.clock.Now()
	if err := e.store.CompleteRun(ctx, runID, now, total, domain.RunCompleted); err != nil {
		e.log.Warn().Str("event", "session.complete_run_failed").Err(err).Msg("complete_run failed")
	}

	e.mu.Lock()
	delete(st.ActiveRuns, runID)
	noMoreActive := len(st.ActiveRuns) == 0
	e.mu.Unlock()

	if !noMoreActive {
		return
	}
	_, err = e.store.GetNextQueuedRun(ctx, st.SessionID)
	if err == nil {
		return // more queued, not actually done
	}
	e.completeSession(ctx, st)
}
