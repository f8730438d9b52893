package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/beacon/internal/auth"
	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/registry"
	"github.com/your-org/beacon/internal/relay"
	"github.com/your-org/beacon/pkg/dto"
)

type DeviceHandler struct {
	registry *registry.Registry
	relay    *relay.Relay
}

func NewDeviceHandler(reg *registry.Registry, rel *relay.Relay) *DeviceHandler {
	return &DeviceHandler{registry: reg, relay: rel}
}

// Rebind binds the caller's account to a tracker device.
func (h *DeviceHandler) Rebind(c *gin.Context) {
	var req dto.RebindDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.registry.Rebind(c.Request.Context(), auth.UserID(c), req.DeviceID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "bound"})
}

// RequestLocation asks the owner of the device for a position fix.
func (h *DeviceHandler) RequestLocation(c *gin.Context) {
	if err := h.relay.RequestLocation(c.Request.Context(), c.Param("deviceId")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "requested"})
}

// ReportLocation accepts a position fix from the caller's bound device.
func (h *DeviceHandler) ReportLocation(c *gin.Context) {
	var req dto.ReportLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.relay.ReportLocation(c.Request.Context(), auth.UserID(c), req.Lat, req.Lng)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.LocationReportResponse{
		ID:         report.ID,
		DeviceID:   report.DeviceID,
		Lat:        report.Lat,
		Lng:        report.Lng,
		ReportedAt: report.ReportedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// LocationRequested tells the caller's device whether a fix is wanted.
func (h *DeviceHandler) LocationRequested(c *gin.Context) {
	requested, err := h.relay.LocationRequested(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.LocationRequestedResponse{Requested: requested})
}

// ListReports returns the device's location history, newest first.
// Only the bound owner or a holder of the device id may page it; the
// id itself is the capability, matching the request flow.
func (h *DeviceHandler) ListReports(c *gin.Context) {
	deviceID := c.Param("deviceId")
	if _, ok, err := h.registry.UserByDevice(c.Request.Context(), deviceID); err != nil {
		fail(c, err)
		return
	} else if !ok {
		fail(c, errs.New(errs.KindNotFound, "device not found"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	reports, total, err := h.relay.Reports(c.Request.Context(), deviceID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	resp := make([]dto.LocationReportResponse, 0, len(reports))
	for _, r := range reports {
		resp = append(resp, dto.LocationReportResponse{
			ID:         r.ID,
			DeviceID:   r.DeviceID,
			Lat:        r.Lat,
			Lng:        r.Lng,
			ReportedAt: r.ReportedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	c.JSON(http.StatusOK, dto.LocationReportListResponse{Reports: resp, Total: total})
}
