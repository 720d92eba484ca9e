package store

import (
	"context"
	"fmt"

	"beacon-network-backend/internal/model"
)

// FingerprintExists is a fast-path duplicate probe. The unique index on
// message_hash remains the authority under concurrent inserts.
func (s *gormStore) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("message_hash = ?", fingerprint).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to probe message fingerprint: %w", err)
	}
	return count > 0, nil
}

// CreateMessage inserts m, returning ErrDuplicate if its fingerprint is taken.
func (s *gormStore) CreateMessage(ctx context.Context, m *model.Message) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create message %s: %w", m.MessageID, err)
	}
	return nil
}

func (s *gormStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	if err := s.db.WithContext(ctx).Where("message_id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListMessagesForDevice returns messages the device sent or received plus
// every broadcast, newest first.
func (s *gormStore) ListMessagesForDevice(ctx context.Context, deviceID string, limit, offset int) ([]model.Message, error) {
	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("source_id = ? OR destination_id = ? OR is_broadcast = ?", deviceID, deviceID, true).
		Order("timestamp DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for device %s: %w", deviceID, err)
	}
	return messages, nil
}
