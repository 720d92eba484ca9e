// Package device tracks the nodes of the network and their liveness.
package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"beacon-network-backend/internal/apperr"
	"beacon-network-backend/internal/model"
	"beacon-network-backend/internal/store"
)

const maxNameLen = 255

// RegisterInput describes a device joining the network.
type RegisterInput struct {
	Name       string
	Location   *string
	DeviceType *string
}

// Registry tracks known devices and their activity state.
type Registry struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewRegistry creates a registry backed by s.
func NewRegistry(s store.Store, log *zap.Logger) *Registry {
	return &Registry{
		store: s,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; used by tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Register allocates an id for a new device and stores it as online.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (*model.Device, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "name must not be empty")
	}
	if len(name) > maxNameLen {
		return nil, apperr.Invalid("name", "name must be at most 255 characters")
	}

	now := r.now()
	d := &model.Device{
		DeviceID:   uuid.NewString(),
		Name:       name,
		Location:   in.Location,
		DeviceType: in.DeviceType,
		Status:     model.DeviceStatusOnline,
		LastSeen:   now,
		CreatedAt:  now,
		IsActive:   true,
	}
	if err := r.store.CreateDevice(ctx, d); err != nil {
		return nil, err
	}

	r.log.Info("device registered", zap.String("device_id", d.DeviceID), zap.String("name", d.Name))
	return d, nil
}

// Exists reports whether id names a registered device, retired or not.
func (r *Registry) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return r.store.DeviceExists(ctx, id)
}

// Get looks up a device by id.
func (r *Registry) Get(ctx context.Context, id string) (*model.Device, error) {
	d, err := r.store.GetDevice(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeDeviceNotFound, id, "device not found")
	}
	return d, err
}

// ListActive returns active devices, newest first. A non-empty status
// restricts the result to that status.
func (r *Registry) ListActive(ctx context.Context, status string) ([]model.Device, error) {
	if status != "" && !model.ValidDeviceStatus(status) {
		return nil, apperr.Invalid("status", "status must be one of online, offline, inactive")
	}
	return r.store.ListActiveDevices(ctx, status)
}

// Heartbeat records that a device was heard from. An empty status means online.
func (r *Registry) Heartbeat(ctx context.Context, id, status string) (*model.Device, error) {
	if status == "" {
		status = model.DeviceStatusOnline
	}
	if !model.ValidDeviceStatus(status) {
		return nil, apperr.Invalid("status", "status must be one of online, offline, inactive")
	}

	err := r.store.TouchDevice(ctx, id, status, r.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeDeviceNotFound, id, "device not found")
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Retire marks a device inactive. It is never hard-deleted.
func (r *Registry) Retire(ctx context.Context, id string) error {
	err := r.store.RetireDevice(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(apperr.CodeDeviceNotFound, id, "device not found")
	}
	if err != nil {
		return err
	}
	r.log.Info("device retired", zap.String("device_id", id))
	return nil
}
