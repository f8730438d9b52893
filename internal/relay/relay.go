// Package relay implements the location request→report handshake.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/models"
	"github.com/your-org/beacon/internal/observability"
)

// Resolver pivots between device and user identifiers.
type Resolver interface {
	UserByDevice(ctx context.Context, deviceID string) (string, bool, error)
	DeviceByUser(ctx context.Context, userID string) (string, bool, error)
}

// Store holds the per-user request flag and the per-device report log.
type Store interface {
	SetLocationRequested(ctx context.Context, userID string, requested bool) error
	GetUserState(ctx context.Context, userID string) (*models.UserState, error)
	AppendLocationReport(ctx context.Context, r *models.LocationReport) error
	ListLocationReports(ctx context.Context, deviceID string, limit, offset int) ([]models.LocationReport, int, error)
}

// Publisher pushes location events out for real-time subscribers.
type Publisher interface {
	PublishLocation(ctx context.Context, ev models.LocationEvent) error
}

type Relay struct {
	resolver Resolver
	store    Store
	events   Publisher // optional
}

func New(resolver Resolver, store Store, events Publisher) *Relay {
	return &Relay{resolver: resolver, store: store, events: events}
}

// RequestLocation marks the device's owner as wanted. An empty device
// id is treated the same as an unknown one. Repeated requests are
// observably no-ops.
func (r *Relay) RequestLocation(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return errs.New(errs.KindNotFound, "device not found")
	}
	userID, ok, err := r.resolver.UserByDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.KindNotFound, "device not found")
	}

	if err := r.store.SetLocationRequested(ctx, userID, true); err != nil {
		return err
	}
	observability.LocationRequests.Inc()

	r.publish(ctx, models.LocationEvent{
		Type:      models.EventLocationRequested,
		DeviceID:  deviceID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// ReportLocation appends a position fix to the report log of the user's
// bound device and clears the pending request flag. A report must come
// from an identifiable device owner.
func (r *Relay) ReportLocation(ctx context.Context, userID string, lat, lng float64) (*models.LocationReport, error) {
	if userID == "" {
		return nil, errs.New(errs.KindUnauthorized, "user identity required")
	}
	deviceID, ok, err := r.resolver.DeviceByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.KindNotFound, "no device bound to user")
	}

	report := &models.LocationReport{DeviceID: deviceID, Lat: lat, Lng: lng}
	if err := r.store.AppendLocationReport(ctx, report); err != nil {
		return nil, err
	}
	if err := r.store.SetLocationRequested(ctx, userID, false); err != nil {
		return nil, err
	}
	observability.LocationReports.Inc()

	r.publish(ctx, models.LocationEvent{
		Type:      models.EventLocationReported,
		DeviceID:  deviceID,
		UserID:    userID,
		Lat:       lat,
		Lng:       lng,
		Timestamp: report.ReportedAt,
	})
	return report, nil
}

// LocationRequested reports whether someone asked for the user's
// position. Devices poll this to decide whether to send a fix.
func (r *Relay) LocationRequested(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errs.New(errs.KindUnauthorized, "user identity required")
	}
	state, err := r.store.GetUserState(ctx, userID)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}
	return state.LocationRequested, nil
}

// Reports returns the device's report history, newest first.
func (r *Relay) Reports(ctx context.Context, deviceID string, limit, offset int) ([]models.LocationReport, int, error) {
	if deviceID == "" {
		return nil, 0, errs.New(errs.KindNotFound, "device not found")
	}
	return r.store.ListLocationReports(ctx, deviceID, limit, offset)
}

func (r *Relay) publish(ctx context.Context, ev models.LocationEvent) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishLocation(ctx, ev); err != nil {
		slog.Warn("publish location event", "type", ev.Type, "device", ev.DeviceID, "error", err)
	}
}
