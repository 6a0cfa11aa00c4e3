package store

import "errors"

// Error kinds per spec §4.B / §7: Transient errors are retried internally
// by record_touch/check_segment_alerts and returned to their caller only
// once the retries are exhausted (other writes return them at once);
// Constraint errors are terminal and reported to the caller; AlreadyExists
// on duplicate segment/idempotent creation is swallowed by callers as
// success, per the idempotence guarantee.
var (
	ErrTransientLocked     = errors.New("store: transient lock, retry")
	ErrConstraintViolation = errors.New("store: constraint violation")
	ErrAlreadyExists       = errors.New("store: already exists")
	ErrNotFound            = errors.New("store: not found")
	ErrInvalidTransition   = errors.New("store: invalid state transition")
)
