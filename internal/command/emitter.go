// Package command implements the Command Emitter (spec §4.E): converts
// registry-level intents (set LED, play clip, assign action, stop) into
// framed messages on the correct connection.
package command

import (
	"github.com/rs/zerolog"

	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/registry"
)

// LEDPattern enumerates the wire-level LED command values (spec §6.1.3).
type LEDPattern string

const (
	LEDOff          LEDPattern = "off"
	LEDSolidGreen   LEDPattern = "solid_green"
	LEDSolidBlue    LEDPattern = "solid_blue"
	LEDSolidRed     LEDPattern = "solid_red"
	LEDSolidAmber   LEDPattern = "solid_amber"
	LEDSolidYellow  LEDPattern = "solid_yellow"
	LEDSolidWhite   LEDPattern = "solid_white"
	LEDSolidPurple  LEDPattern = "solid_purple"
	LEDSolidCyan    LEDPattern = "solid_cyan"
	LEDBlinkAmber   LEDPattern = "blink_amber"
	LEDRainbow      LEDPattern = "rainbow"
	LEDChase        LEDPattern = "chase"
	LEDChaseRed     LEDPattern = "chase_red"
	LEDChaseGreen   LEDPattern = "chase_green"
	LEDChaseBlue    LEDPattern = "chase_blue"
	LEDChaseAmber   LEDPattern = "chase_amber"
	LEDChaseYellow  LEDPattern = "chase_yellow"
	LEDFlashGreen   LEDPattern = "flash_green"
	LEDFlashRed     LEDPattern = "flash_red"
)

// SolidForColor maps a course action's plain color name (red/green/blue/
// amber/yellow) to its wire-level solid LED pattern.
func SolidForColor(color string) LEDPattern {
	return LEDPattern("solid_" + color)
}

// ChaseForColor maps a plain color name to its wire-level chase pattern.
func ChaseForColor(color string) LEDPattern {
	return LEDPattern("chase_" + color)
}

// LEDDriver is the seam for the controller's own optional local LED
// hardware (Device 0 short-circuit, spec §4.E). A no-op implementation is
// wired when hardware is absent (REDESIGN FLAGS: "optional hardware
// behind trait/interface seams").
type LEDDriver interface {
	SetLED(pattern LEDPattern) error
}

// AudioPlayer is the seam for the controller's own optional local audio
// output.
type AudioPlayer interface {
	PlayClip(clip string) error
}

// NoopLEDDriver is wired when no local LED hardware is present.
type NoopLEDDriver struct{}

func (NoopLEDDriver) SetLED(LEDPattern) error { return nil }

// NoopAudioPlayer is wired when no local audio hardware is present.
type NoopAudioPlayer struct{}

func (NoopAudioPlayer) PlayClip(string) error { return nil }

// Frame is one JSON command object sent to a cone (spec §6.1.3). Fields
// are tagged omitempty so each command kind serializes to exactly the
// shape the wire protocol specifies.
type Frame struct {
	Cmd          string  `json:"cmd,omitempty"`
	Pattern      string  `json:"pattern,omitempty"`
	Clip         string  `json:"clip,omitempty"`
	Action       *string `json:"action,omitempty"`
	CourseStatus string  `json:"course_status,omitempty"`
	Threshold    float64 `json:"threshold,omitempty"`
	Deploy       bool    `json:"deploy,omitempty"`
	Course       string  `json:"course,omitempty"`
}

// Emitter sends command frames to cones via the Registry's per-node
// writer, or locally for the controller's own virtual Device 0 (spec
// §4.E).
type Emitter struct {
	registry    *registry.Registry
	led         LEDDriver
	audio       AudioPlayer
	hasLocalLED bool
	hasLocalAud bool
	log         zerolog.Logger
}

// New creates an Emitter. led/audio may be no-op implementations; pass
// hasLocalLED/hasLocalAudio to indicate whether the controller should
// route Device-0 commands to them rather than merely recording state.
func New(reg *registry.Registry, led LEDDriver, audio AudioPlayer, hasLocalLED, hasLocalAudio bool, logger zerolog.Logger) *Emitter {
	if led == nil {
		led = NoopLEDDriver{}
	}
	if audio == nil {
		audio = NoopAudioPlayer{}
	}
	return &Emitter{
		registry:    reg,
		led:         led,
		audio:       audio,
		hasLocalLED: hasLocalLED,
		hasLocalAud: hasLocalAudio,
		log:         logger.With().Str("component", "command").Logger(),
	}
}

// send writes a frame to nodeID's writer, fetched from the Registry.
// The Registry's lock is held only while the writer is looked up; the
// write itself happens after that lock is released, so a connection
// closed in between shows up as a write error (the writer serializes its
// own writes). This function holds no lock of its own.
func (e *Emitter) send(nodeID string, f Frame) bool {
	w := e.registry.Writer(nodeID)
	if w == nil {
		return false
	}
	if err := w.WriteFrame(f); err != nil {
		e.log.Warn().
			Str("event", "command.write_failed").
			Str("node_id", nodeID).
			Err(err).
			Msg("command write failed, marking node offline")
		e.registry.MarkOffline(nodeID)
		return false
	}
	return true
}

// SetLED sends an LED command, or drives the local strip for Device 0.
func (e *Emitter) SetLED(nodeID string, pattern LEDPattern) bool {
	if nodeID == domain.ControllerDeviceID {
		if e.hasLocalLED {
			if err := e.led.SetLED(pattern); err != nil {
				e.log.Warn().Err(err).Msg("local LED driver failed")
			}
		}
		e.registry.RecordCommandedState(nodeID, string(pattern), "")
		return true
	}
	ok := e.send(nodeID, Frame{Cmd: "led", Pattern: string(pattern)})
	if ok {
		e.registry.RecordCommandedState(nodeID, string(pattern), "")
	}
	return ok
}

// PlayAudio sends an audio command, or drives the local player for Device 0.
func (e *Emitter) PlayAudio(nodeID, clip string) bool {
	if nodeID == domain.ControllerDeviceID {
		if e.hasLocalAud {
			if err := e.audio.PlayClip(clip); err != nil {
				e.log.Warn().Err(err).Msg("local audio player failed")
			}
		}
		e.registry.RecordCommandedState(nodeID, "", clip)
		return true
	}
	ok := e.send(nodeID, Frame{Cmd: "audio", Clip: clip})
	if ok {
		e.registry.RecordCommandedState(nodeID, "", clip)
	}
	return ok
}

// Start sends {cmd:"start", course_status:"Active"}.
func (e *Emitter) Start(nodeID string) bool {
	if nodeID == domain.ControllerDeviceID {
		return true
	}
	return e.send(nodeID, Frame{Cmd: "start", CourseStatus: "Active"})
}

// Stop sends {cmd:"stop", action:null, course_status:<status>?}.
func (e *Emitter) Stop(nodeID string, courseStatus string) bool {
	if nodeID == domain.ControllerDeviceID {
		return true
	}
	return e.send(nodeID, Frame{Cmd: "stop", CourseStatus: courseStatus})
}

// Deploy sends the {deploy:true, action, course} envelope.
func (e *Emitter) Deploy(nodeID, action, course string) bool {
	if nodeID == domain.ControllerDeviceID {
		return true
	}
	return e.send(nodeID, Frame{Deploy: true, Action: &action, Course: course})
}

// Calibrate sends an out-of-band threshold-set command.
func (e *Emitter) Calibrate(nodeID string, threshold float64) bool {
	return e.send(nodeID, Frame{Cmd: "calibrate", Action: strPtr("set_threshold"), Threshold: threshold})
}

func strPtr(s string) *string { return &s }
