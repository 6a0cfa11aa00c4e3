// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/api/v1/status", "http://localhost:8080/api/v1/status", 200)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "GET")
	verifyAttribute(t, attrs, HTTPRouteKey, "/api/v1/status")
	verifyAttribute(t, attrs, HTTPURLKey, "http://localhost:8080/api/v1/status")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestNodeAttributes(t *testing.T) {
	tests := []struct {
		name    string
		nodeID  string
		state   string
		wantLen int
	}{
		{name: "all fields", nodeID: "cone-07", state: "online", wantLen: 4},
		{name: "no node id or state", nodeID: "", state: "", wantLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := NodeAttributes(tt.nodeID, tt.state, 87, -62)

			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			if tt.nodeID != "" {
				verifyAttribute(t, attrs, NodeIDKey, tt.nodeID)
			}
			if tt.state != "" {
				verifyAttribute(t, attrs, NodeStateKey, tt.state)
			}
			verifyIntAttribute(t, attrs, NodeBatteryKey, 87)
			verifyIntAttribute(t, attrs, NodeRSSIKey, -62)
		})
	}
}

func TestTouchAttributes(t *testing.T) {
	attrs := TouchAttributes("cone-03", 2, "1", "attributed")

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, TouchNodeIDKey, "cone-03")
	verifyIntAttribute(t, attrs, TouchSequenceKey, 2)
	verifyAttribute(t, attrs, TouchPriorityKey, "1")
	verifyAttribute(t, attrs, TouchOutcomeKey, "attributed")
}

func TestSessionAttributes(t *testing.T) {
	attrs := SessionAttributes("sess-1", "pattern")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, SessionIDKey, "sess-1")
	verifyAttribute(t, attrs, SessionModeKey, "pattern")
}

func TestRunAttributes(t *testing.T) {
	tests := []struct {
		name      string
		runID     string
		athleteID string
		segmentID string
		status    string
		wantLen   int
	}{
		{
			name:      "all fields",
			runID:     "run-1",
			athleteID: "athlete-1",
			segmentID: "seg-3",
			status:    "active",
			wantLen:   4,
		},
		{
			name:    "empty fields",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := RunAttributes(tt.runID, tt.athleteID, tt.segmentID, tt.status)

			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
		})
	}
}

func TestCommandAttributes(t *testing.T) {
	attrs := CommandAttributes("cone-05", "led", 1)

	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, CommandNodeIDKey, "cone-05")
	verifyAttribute(t, attrs, CommandKindKey, "led")
	verifyIntAttribute(t, attrs, CommandPriorityKey, 1)
}

func TestErrorAttributes(t *testing.T) {
	err := errors.New("test error")
	attrs := ErrorAttributes(err, "network_error")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}

	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "network_error")
}

func TestAttributeKeys_Consistency(t *testing.T) {
	// Verify the attribute keys are non-empty
	keys := []string{
		HTTPMethodKey,
		HTTPStatusCodeKey,
		HTTPRouteKey,
		NodeIDKey,
		TouchNodeIDKey,
		SessionIDKey,
		RunIDKey,
		CommandNodeIDKey,
		ErrorKey,
	}

	for _, key := range keys {
		if key == "" {
			t.Errorf("Expected non-empty attribute key")
		}
	}
}

// Helper functions for attribute verification

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != int64(expectedValue) {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != expectedValue {
				t.Errorf("Expected %s=%t, got %t", key, expectedValue, attr.Value.AsBool())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
