// Package course implements the Course Lifecycle state machine (spec
// §4.F): Inactive → Deployed → Active, with Active → Deployed permitted
// directly (a paused course stays deployed, not reset).
package course

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fieldcone/controller/internal/command"
	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/registry"
)

// Store is the persistence seam this package depends on.
type Store interface {
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
}

// ErrInvalidTransition is returned for a transition the state machine does
// not permit from its current state.
var ErrInvalidTransition = fmt.Errorf("course: invalid state transition")

// Lifecycle owns the course state machine and drives per-cone commands
// through the Command Emitter as the course transitions (spec §4.F).
type Lifecycle struct {
	store    Store
	registry *registry.Registry
	emitter  *command.Emitter
	log      zerolog.Logger
}

// New creates a Lifecycle.
func New(store Store, reg *registry.Registry, emitter *command.Emitter, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		store:    store,
		registry: reg,
		emitter:  emitter,
		log:      logger.With().Str("component", "course").Logger(),
	}
}

// Deploy loads a course and transitions Inactive|Deployed → Deployed:
// computes the node_id -> action assignment map, records it in the
// Registry, and sends each assigned cone its Deploy command so its next
// heartbeat acknowledgement carries the assignment (spec §4.F.2).
func (l *Lifecycle) Deploy(ctx context.Context, courseID string) (*domain.Course, error) {
	status, _ := l.registry.CourseState()
	if status == registry.Active {
		return nil, fmt.Errorf("%w: cannot deploy while Active", ErrInvalidTransition)
	}

	c, err := l.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course: deploy: %w", err)
	}

	assignments := make(map[string]string, len(c.Actions))
	for _, a := range c.Actions {
		assignments[a.DeviceID] = a.Action
	}
	l.registry.SetAssignments(assignments)
	l.registry.SetCourseState(registry.Deployed, c.ID)

	for _, a := range c.Actions {
		if a.IsController() {
			continue
		}
		l.emitter.Deploy(a.DeviceID, a.Action, c.Name)
	}

	l.log.Info().Str("event", "course.deployed").Str("course_id", c.ID).Str("name", c.Name).Msg("course deployed")
	return c, nil
}

// Activate transitions Deployed → Active: flips course_status and sends
// each assigned cone its Start command so LEDs switch from Deployed (dim
// solid) to Active (full solid) display behavior (spec §4.F.3).
func (l *Lifecycle) Activate(ctx context.Context) error {
	status, courseID := l.registry.CourseState()
	if status != registry.Deployed {
		return fmt.Errorf("%w: can only activate from Deployed, currently %s", ErrInvalidTransition, status)
	}
	l.registry.SetCourseState(registry.Active, courseID)

	for nodeID := range l.registry.Assignments() {
		if nodeID == domain.ControllerDeviceID {
			continue
		}
		l.emitter.Start(nodeID)
	}
	l.log.Info().Str("event", "course.activated").Str("course_id", courseID).Msg("course activated")
	return nil
}

// Deactivate transitions Active|Deployed → Inactive: clears assignments,
// resets course_status, and sends each previously-assigned cone a Stop
// command with the reset course_status so it returns to Standby display
// (spec §4.F.4).
func (l *Lifecycle) Deactivate(ctx context.Context) error {
	status, _ := l.registry.CourseState()
	if status == registry.Inactive {
		return nil
	}
	assignments := l.registry.Assignments()
	l.registry.ClearAssignments()
	l.registry.SetCourseState(registry.Inactive, "")

	for nodeID := range assignments {
		if nodeID == domain.ControllerDeviceID {
			continue
		}
		l.emitter.Stop(nodeID, string(registry.Inactive))
	}
	l.log.Info().Str("event", "course.deactivated").Msg("course deactivated")
	return nil
}

// Status returns the current course_status and selected course id.
func (l *Lifecycle) Status() (registry.CourseStatus, string) {
	return l.registry.CourseState()
}
