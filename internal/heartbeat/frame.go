package heartbeat

// InboundFrame is a heartbeat frame as reported by a cone (spec §6.1.1).
// It deliberately has no led_pattern/audio_clip fields: LED and audio flow
// controller → device only, and accepting them from a heartbeat has been
// observed to cause the device to clear controller-assigned state. The
// absence of those fields on this type is what enforces the "non-
// acceptance rule" by construction (spec §4.D step 3, §9).
type InboundFrame struct {
	NodeID            string             `json:"node_id"`
	Status            string             `json:"status"`
	Timestamp         float64            `json:"timestamp"`
	Sensors           map[string]any     `json:"sensors"`
	BatteryLevel      *float64           `json:"battery_level"`
	AccelerometerOK   *bool              `json:"accelerometer_working"`
	AudioOK           *bool              `json:"audio_working"`
	Action            string             `json:"action"`
	TouchDetected     bool               `json:"touch_detected"`
	TouchTimestamp    float64            `json:"touch_timestamp"`
	ClockSkewMS       *float64           `json:"clock_skew_ms"`
	FirstConnect      bool               `json:"first_connect"`
}

// AckFrame is the controller's reply to a heartbeat (spec §6.1.2).
type AckFrame struct {
	Ack          bool    `json:"ack"`
	Action       *string `json:"action"`
	CourseStatus string  `json:"course_status"`
	Timestamp    string  `json:"timestamp"`
	MasterTime   int64   `json:"master_time"`
	MeshNetwork  string  `json:"mesh_network"`
	ServerVersion string `json:"server_version"`
	LEDPattern   string  `json:"led_pattern,omitempty"`
	AudioClip    string  `json:"audio_clip,omitempty"`
}

// ErrorFrame is sent when an inbound frame fails to parse (spec §7
// Protocol class: "malformed JSON frame... server responds with an error
// frame and keeps the connection open").
type ErrorFrame struct {
	Error string `json:"error"`
}
