// Package registry maintains the bijective device↔user binding.
package registry

import (
	"context"

	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/models"
)

// Store persists the binding. Rebind must be atomic: either the full
// bidirectional binding is installed or the prior state is left intact,
// and concurrent rebinds of the same device or user must serialize.
// Implementations return a Conflict-kinded error when the device is
// already bound to a different user.
type Store interface {
	Rebind(ctx context.Context, userID, deviceID string) error
	UserByDevice(ctx context.Context, deviceID string) (string, bool, error)
	DeviceByUser(ctx context.Context, userID string) (string, bool, error)
}

// Registry validates binding requests and delegates the atomic swap to
// the store.
type Registry struct {
	store Store
}

func New(store Store) *Registry {
	return &Registry{store: store}
}

// Rebind binds the device to the user, superseding any previous device
// the user held. A device bound to a different user is never
// overwritten.
func (r *Registry) Rebind(ctx context.Context, userID, deviceID string) error {
	if userID == "" {
		return errs.New(errs.KindUnauthorized, "user identity required")
	}
	if len(deviceID) != models.DeviceIDLength {
		return errs.Newf(errs.KindInvalidArgument, "device id must be %d characters", models.DeviceIDLength)
	}
	return r.store.Rebind(ctx, userID, deviceID)
}

// UserByDevice is a pure lookup with no side effects.
func (r *Registry) UserByDevice(ctx context.Context, deviceID string) (string, bool, error) {
	if deviceID == "" {
		return "", false, nil
	}
	return r.store.UserByDevice(ctx, deviceID)
}

// DeviceByUser is the symmetric lookup.
func (r *Registry) DeviceByUser(ctx context.Context, userID string) (string, bool, error) {
	if userID == "" {
		return "", false, nil
	}
	return r.store.DeviceByUser(ctx, userID)
}
