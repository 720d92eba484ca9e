package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// DeviceID links the subscriber to the node it operates, so broadcasts are
// not echoed back to their source.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	DeviceID  *string   `gorm:"size:36;index" json:"device_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
