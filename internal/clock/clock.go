// Package clock provides the controller's single seam for wall-clock time
// and identifier generation (spec §4.A). Every timestamp the core reads or
// persists, and every sleep the Session Engine performs during LED
// animations, goes through a clock.Clock so tests can replace it with a
// deterministic quartz.Mock instead of sleeping in real time.
package clock

import (
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
)

// Clock is the subset of quartz.Clock the core depends on, re-exported so
// callers don't need to import quartz directly.
type Clock = quartz.Clock

// NewReal returns the production clock backed by the OS.
func NewReal() Clock {
	return quartz.NewReal()
}

// NewMock returns a deterministic clock for tests. Advance it explicitly
// with mock.Advance(d) or mock.Set(t); sleeps and timers block until
// advanced.
func NewMock(tb quartz.TestingT) *quartz.Mock {
	return quartz.NewMock(tb)
}

// Now returns the current wall-clock time with sub-millisecond resolution,
// per §4.A.
func Now(c Clock) time.Time {
	return c.Now()
}

// UUID renders a random 128-bit identifier as a stable string.
func UUID() string {
	return uuid.NewString()
}
