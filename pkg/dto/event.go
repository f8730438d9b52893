package dto

import "encoding/json"

// WSEvent is a WebSocket message for real-time event delivery. Data
// holds a LocationEvent or RecognitionEvent payload verbatim.
type WSEvent struct {
	Type     string          `json:"type"`
	DeviceID string          `json:"device_id"`
	Data     json.RawMessage `json:"data,omitempty"`
}
