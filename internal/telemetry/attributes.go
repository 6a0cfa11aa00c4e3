// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the field
// controller.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Node/mesh attributes
	NodeIDKey       = "node.id"
	NodeStateKey    = "node.state"
	NodeBatteryKey  = "node.battery_pct"
	NodeRSSIKey     = "node.rssi"
	NodeFirmwareKey = "node.firmware_version"

	// Touch attribution attributes
	TouchNodeIDKey   = "touch.node_id"
	TouchSequenceKey = "touch.sequence"
	TouchPriorityKey = "touch.priority"
	TouchOutcomeKey  = "touch.outcome"

	// Session/run attributes
	SessionIDKey  = "session.id"
	SessionModeKey = "session.mode"
	RunIDKey      = "run.id"
	AthleteIDKey  = "run.athlete_id"
	SegmentIDKey  = "run.segment_id"
	RunStatusKey  = "run.status"

	// Command dispatch attributes
	CommandNodeIDKey = "command.node_id"
	CommandKindKey   = "command.kind"
	CommandPriorityKey = "command.priority"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// NodeAttributes creates node/mesh related span attributes.
func NodeAttributes(nodeID, state string, batteryPct, rssi int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if nodeID != "" {
		attrs = append(attrs, attribute.String(NodeIDKey, nodeID))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(NodeStateKey, state))
	}
	attrs = append(attrs, attribute.Int(NodeBatteryKey, batteryPct))
	attrs = append(attrs, attribute.Int(NodeRSSIKey, rssi))
	return attrs
}

// TouchAttributes creates touch-attribution span attributes.
func TouchAttributes(nodeID string, sequence int, priority, outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TouchNodeIDKey, nodeID),
		attribute.Int(TouchSequenceKey, sequence),
		attribute.String(TouchPriorityKey, priority),
		attribute.String(TouchOutcomeKey, outcome),
	}
}

// SessionAttributes creates session-lifecycle span attributes.
func SessionAttributes(sessionID, mode string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionIDKey, sessionID),
		attribute.String(SessionModeKey, mode),
	}
}

// RunAttributes creates per-athlete run span attributes.
func RunAttributes(runID, athleteID, segmentID, status string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if runID != "" {
		attrs = append(attrs, attribute.String(RunIDKey, runID))
	}
	if athleteID != "" {
		attrs = append(attrs, attribute.String(AthleteIDKey, athleteID))
	}
	if segmentID != "" {
		attrs = append(attrs, attribute.String(SegmentIDKey, segmentID))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(RunStatusKey, status))
	}
	return attrs
}

// CommandAttributes creates command-dispatch span attributes.
func CommandAttributes(nodeID, kind string, priority int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CommandNodeIDKey, nodeID),
		attribute.String(CommandKindKey, kind),
		attribute.Int(CommandPriorityKey, priority),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
