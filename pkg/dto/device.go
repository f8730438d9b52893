package dto

import "github.com/google/uuid"

type RebindDeviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

type ReportLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type LocationReportResponse struct {
	ID         uuid.UUID `json:"id"`
	DeviceID   string    `json:"device_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ReportedAt string    `json:"reported_at"`
}

type LocationReportListResponse struct {
	Reports []LocationReportResponse `json:"reports"`
	Total   int                      `json:"total"`
}

type LocationRequestedResponse struct {
	Requested bool `json:"requested"`
}
