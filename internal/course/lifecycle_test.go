package course

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fieldcone/controller/internal/command"
	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/registry"
)

type fakeStore struct {
	course *domain.Course
	err    error
}

func (s *fakeStore) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.course, nil
}

func newTestLifecycle(c *domain.Course) (*Lifecycle, *registry.Registry) {
	reg := registry.New()
	reg.UpsertNode(registry.UpsertParams{NodeID: "cone-1"})
	reg.UpsertNode(registry.UpsertParams{NodeID: "cone-2"})
	emitter := command.New(reg, nil, nil, false, false, zerolog.Nop())
	return New(&fakeStore{course: c}, reg, emitter, zerolog.Nop()), reg
}

func testCourse() *domain.Course {
	return &domain.Course{
		ID:   "course-1",
		Name: "Basic Agility",
		Actions: []domain.CourseAction{
			{Sequence: 0, DeviceID: "cone-1", Action: "touch"},
			{Sequence: 1, DeviceID: "cone-2", Action: "touch"},
		},
	}
}

func TestDeploy_SetsAssignmentsAndCourseState(t *testing.T) {
	lc, reg := newTestLifecycle(testCourse())

	got, err := lc.Deploy(context.Background(), "course-1")
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if got.ID != "course-1" {
		t.Errorf("expected course-1 returned, got %s", got.ID)
	}

	status, courseID := reg.CourseState()
	if status != registry.Deployed || courseID != "course-1" {
		t.Errorf("expected Deployed/course-1, got %s/%s", status, courseID)
	}
	if reg.Assignment("cone-1") != "touch" {
		t.Errorf("expected cone-1 assigned touch, got %q", reg.Assignment("cone-1"))
	}
}

func TestDeploy_RejectedWhileActive(t *testing.T) {
	lc, reg := newTestLifecycle(testCourse())
	reg.SetCourseState(registry.Active, "course-1")

	_, err := lc.Deploy(context.Background(), "course-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestActivate_OnlyFromDeployed(t *testing.T) {
	lc, reg := newTestLifecycle(testCourse())

	if err := lc.Activate(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition activating from Inactive, got %v", err)
	}

	reg.SetCourseState(registry.Deployed, "course-1")
	if err := lc.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	status, _ := reg.CourseState()
	if status != registry.Active {
		t.Errorf("expected Active, got %s", status)
	}
}

func TestDeactivate_ClearsAssignmentsAndResetsState(t *testing.T) {
	lc, reg := newTestLifecycle(testCourse())
	if _, err := lc.Deploy(context.Background(), "course-1"); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	if err := lc.Deactivate(context.Background()); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	status, courseID := reg.CourseState()
	if status != registry.Inactive || courseID != "" {
		t.Errorf("expected Inactive/\"\", got %s/%s", status, courseID)
	}
	if reg.Assignment("cone-1") != "" {
		t.Errorf("expected assignments cleared, got %q", reg.Assignment("cone-1"))
	}
}

func TestDeactivate_NoOpWhenAlreadyInactive(t *testing.T) {
	lc, _ := newTestLifecycle(testCourse())

	if err := lc.Deactivate(context.Background()); err != nil {
		t.Fatalf("expected no-op success deactivating from Inactive, got %v", err)
	}
}

func TestStatus_ReflectsRegistry(t *testing.T) {
	lc, reg := newTestLifecycle(testCourse())
	reg.SetCourseState(registry.Deployed, "course-1")

	status, courseID := lc.Status()
	if status != registry.Deployed || courseID != "course-1" {
		t.Errorf("expected Deployed/course-1, got %s/%s", status, courseID)
	}
}
