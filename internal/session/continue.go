package session

import (
	"context"
	"fmt"

	"github.com/fieldcone/controller/internal/domain"
)

// Continue creates a new session with only the athletes who completed
// successfully, pattern_length+1 (clamped to 8), same course/team/voice
// (spec §4.I session.continue).
func (e *Engine) Continue(ctx context.Context, sessionID string) (newSessionID string, patternLength, athleteCount int, err error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", 0, 0, fmt.Errorf("session: continue: %w", err)
	}
	runs, err := e.store.ListRuns(ctx, sessionID)
	if err != nil {
		return "", 0, 0, fmt.Errorf("session: continue: %w", err)
	}

	queue := successfulAthletes(runs)
	if len(queue) == 0 {
		return "", 0, 0, fmt.Errorf("session: continue: no successful athletes to carry forward")
	}

	cfg := domain.DefaultPatternConfig()
	if sess.PatternConfig != nil {
		cfg = *sess.PatternConfig
	}
	cfg.SequenceLength = clampSequenceLength(cfg.SequenceLength + 1)

	id, err := e.store.CreateSession(ctx, sess.TeamID, sess.CourseID, queue, sess.AudioVoice, &cfg)
	if err != nil {
		return "", 0, 0, fmt.Errorf("session: continue: %w", err)
	}
	return id, cfg.SequenceLength, len(queue), nil
}

// Repeat creates a new session with the same athletes (minus those marked
// absent), same course, same pattern_config (spec §4.I session.repeat).
func (e *Engine) Repeat(ctx context.Context, sessionID string) (newSessionID string, err error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("session: repeat: %w", err)
	}
	runs, err := e.store.ListRuns(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("session: repeat: %w", err)
	}

	queue := presentAthletes(runs)
	if len(queue) == 0 {
		return "", fmt.Errorf("session: repeat: no athletes to repeat")
	}

	id, err := e.store.CreateSession(ctx, sess.TeamID, sess.CourseID, queue, sess.AudioVoice, sess.PatternConfig)
	if err != nil {
		return "", fmt.Errorf("session: repeat: %w", err)
	}
	return id, nil
}

func successfulAthletes(runs []domain.Run) []domain.Athlete {
	out := make([]domain.Athlete, 0, len(runs))
	for _, r := range runs {
		if r.Status == domain.RunCompleted {
			out = append(out, domain.Athlete{ID: r.AthleteID, Name: r.AthleteName})
		}
	}
	return out
}

func presentAthletes(runs []domain.Run) []domain.Athlete {
	out := make([]domain.Athlete, 0, len(runs))
	for _, r := range runs {
		if r.Status != domain.RunAbsent {
			out = append(out, domain.Athlete{ID: r.AthleteID, Name: r.AthleteName})
		}
	}
	return out
}
