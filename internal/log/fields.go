// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldRunID         = "run_id"
	FieldSegmentID     = "segment_id"
	FieldCourseID      = "course_id"
	FieldTeamID        = "team_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Cone / device fields
	FieldDeviceID   = "device_id"
	FieldNodeID     = "node_id"
	FieldSequence   = "sequence"
	FieldGap        = "gap"
	FieldPriority   = "priority"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldRemoteAddr = "remote_addr"
)
