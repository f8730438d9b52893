package models

import "time"

// DeviceIDLength is the fixed length of tracker device identifiers.
const DeviceIDLength = 6

// DeviceBinding associates one device with one user. Both directions are
// unique: a device belongs to at most one user and a user holds at most
// one device. Rows are replaced only through Registry.Rebind.
type DeviceBinding struct {
	UserID    string    `json:"user_id" db:"user_id"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserState is the per-user mutable record: the pending location-request
// flag and the advisory cache of the last recognition's labels.
type UserState struct {
	UserID            string    `json:"user_id" db:"user_id"`
	LocationRequested bool      `json:"location_requested" db:"location_requested"`
	DetectedFaces     []string  `json:"detected_faces" db:"detected_faces"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
