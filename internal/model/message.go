package model

import "time"

// Message is a direct or broadcast message accepted by the relay.
// DestinationID is nil for every broadcast.
type Message struct {
	MessageID     string    `gorm:"primaryKey;size:36" json:"message_id"`
	SourceID      string    `gorm:"size:36;not null;index" json:"source_id"`
	DestinationID *string   `gorm:"size:36;index" json:"destination_id"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	IsEncrypted   bool      `gorm:"not null;default:false" json:"is_encrypted"`
	Timestamp     time.Time `gorm:"not null;index" json:"timestamp"`
	HopCount      int       `gorm:"not null;default:0" json:"hop_count"`
	MaxHops       int       `gorm:"not null;default:10" json:"max_hops"`
	IsBroadcast   bool      `gorm:"not null;default:false" json:"is_broadcast"`
	Fingerprint   string    `gorm:"column:message_hash;size:64;not null;uniqueIndex" json:"-"`
	Delivered     bool      `gorm:"not null;default:false" json:"delivered"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}
