package store

import (
	"context"
	"fmt"
	"time"

	"beacon-network-backend/internal/model"
)

func (s *gormStore) CreateDevice(ctx context.Context, d *model.Device) error {
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create device %s: %w", d.DeviceID, err)
	}
	return nil
}

func (s *gormStore) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	var d model.Device
	if err := s.db.WithContext(ctx).Where("device_id = ?", id).First(&d).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (s *gormStore) DeviceExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Device{}).Where("device_id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up device %s: %w", id, err)
	}
	return count > 0, nil
}

// ListActiveDevices returns active devices, newest first, optionally
// restricted to one status.
func (s *gormStore) ListActiveDevices(ctx context.Context, status string) ([]model.Device, error) {
	q := s.db.WithContext(ctx).Where("is_active = ?", true)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var devices []model.Device
	if err := q.Order("created_at DESC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// TouchDevice records a liveness report for an active device.
func (s *gormStore) TouchDevice(ctx context.Context, id, status string, seenAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("device_id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"status": status, "last_seen": seenAt})
	if res.Error != nil {
		return fmt.Errorf("failed to update device %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RetireDevice soft-deletes a device. Retiring twice is not an error.
func (s *gormStore) RetireDevice(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("device_id = ?", id).
		Updates(map[string]any{"is_active": false, "status": model.DeviceStatusInactive})
	if res.Error != nil {
		return fmt.Errorf("failed to retire device %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkStaleDevicesOffline flips online devices not seen since cutoff to offline.
func (s *gormStore) MarkStaleDevicesOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("is_active = ? AND status = ? AND last_seen < ?", true, model.DeviceStatusOnline, cutoff).
		Update("status", model.DeviceStatusOffline)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark stale devices offline: %w", res.Error)
	}
	return res.RowsAffected, nil
}
