package models

import "time"

// Event types published to NATS and relayed to WebSocket subscribers.
const (
	EventLocationRequested = "location_requested"
	EventLocationReported  = "location_reported"
	EventFaceRecognized    = "face_recognized"
	EventFaceUnknown       = "face_unknown"
)

// LocationEvent announces a request for, or arrival of, a position fix.
type LocationEvent struct {
	Type      string    `json:"type"`
	DeviceID  string    `json:"device_id"`
	UserID    string    `json:"user_id"`
	Lat       float64   `json:"lat,omitempty"`
	Lng       float64   `json:"lng,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RecognitionEvent carries the outcome of one recognition call.
type RecognitionEvent struct {
	Type      string    `json:"type"`
	DeviceID  string    `json:"device_id"`
	UserID    string    `json:"user_id"`
	Labels    []string  `json:"labels"`
	Timestamp time.Time `json:"timestamp"`
}
