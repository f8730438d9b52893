package models

import (
	"time"

	"github.com/google/uuid"
)

// LocationReport is one position fix appended to a device's history.
// Coordinates pass through unvalidated; the timestamp is assigned by the
// server at acceptance. The sequence is append-only.
type LocationReport struct {
	ID         uuid.UUID `json:"id" db:"id"`
	DeviceID   string    `json:"device_id" db:"device_id"`
	Lat        float64   `json:"lat" db:"lat"`
	Lng        float64   `json:"lng" db:"lng"`
	ReportedAt time.Time `json:"reported_at" db:"reported_at"`
}
