package session

import (
	"strings"

	"github.com/fieldcone/controller/internal/domain"
)

const (
	minSequenceLength = 3
	maxSequenceLength = 8
	maxRegenAttempts  = 100
	maxDistinctRetry  = 10
)

// clampSequenceLength enforces the [3, 8] bound (spec §4.G.5).
func clampSequenceLength(n int) int {
	if n < minSequenceLength {
		return minSequenceLength
	}
	if n > maxSequenceLength {
		return maxSequenceLength
	}
	return n
}

// coloredDevices extracts the set of non-controller course actions that
// carry an explicit color, the eligible set for pattern generation (spec
// §4.G.2 step 6).
func coloredDevices(course domain.Course) []domain.ColoredDevice {
	out := make([]domain.ColoredDevice, 0, len(course.Actions))
	for _, a := range course.Actions {
		if a.IsController() {
			continue
		}
		if c := a.Color(); c != "" {
			out = append(out, domain.ColoredDevice{DeviceID: a.DeviceID, DeviceName: a.Action, Color: c})
		}
	}
	return out
}

// generatePattern produces one pattern, regenerating (bounded
// maxDistinctRetry attempts) to avoid an identical-to-previous sequence
// (spec §4.G.5).
func (e *Engine) generatePattern(colored []domain.ColoredDevice, cfg domain.PatternConfig, prev []string) domain.PatternData {
	length := clampSequenceLength(cfg.SequenceLength)
	allowRepeats := cfg.AllowRepeats
	if length > len(colored) {
		allowRepeats = true
	}

	var devices []domain.ColoredDevice
	for attempt := 0; attempt < maxDistinctRetry; attempt++ {
		devices = e.samplePattern(colored, length, allowRepeats)
		if !identicalToPrevious(devices, prev) {
			break
		}
	}

	ids := make([]string, len(devices))
	colors := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.DeviceID
		colors[i] = strings.ToUpper(d.Color)
	}

	return domain.PatternData{
		Devices:        devices,
		Description:    strings.Join(colors, "→"),
		DeviceIDs:      ids,
		ColoredDevices: colored,
	}
}

func identicalToPrevious(devices []domain.ColoredDevice, prev []string) bool {
	if len(prev) != len(devices) {
		return false
	}
	for i, d := range devices {
		if d.DeviceID != prev[i] {
			return false
		}
	}
	return true
}

// samplePattern implements the per-step choice rules: with repeats
// allowed, uniform choice excluding the immediately previous step; without
// repeats, sampling distinct devices without replacement (spec §4.G.5).
func (e *Engine) samplePattern(colored []domain.ColoredDevice, length int, allowRepeats bool) []domain.ColoredDevice {
	if len(colored) == 0 {
		return nil
	}
	out := make([]domain.ColoredDevice, 0, length)

	if !allowRepeats {
		n := length
		if n > len(colored) {
			n = len(colored)
		}
		pool := make([]domain.ColoredDevice, len(colored))
		copy(pool, colored)
		e.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		return pool[:n]
	}

	var last string
	for i := 0; i < length; i++ {
		choice := e.pickExcluding(colored, last)
		out = append(out, choice)
		last = choice.DeviceID
	}
	return out
}

func (e *Engine) pickExcluding(colored []domain.ColoredDevice, excludeID string) domain.ColoredDevice {
	if len(colored) == 1 {
		return colored[0]
	}
	for {
		c := colored[e.rng.Intn(len(colored))]
		if c.DeviceID != excludeID {
			return c
		}
	}
}
