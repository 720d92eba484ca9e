package model

import "time"

// Device liveness states.
const (
	DeviceStatusOnline   = "online"
	DeviceStatusOffline  = "offline"
	DeviceStatusInactive = "inactive"
)

// ValidDeviceStatus reports whether s is one of the known device states.
func ValidDeviceStatus(s string) bool {
	switch s {
	case DeviceStatusOnline, DeviceStatusOffline, DeviceStatusInactive:
		return true
	}
	return false
}

// Device represents a registered network node. Devices are never deleted;
// IsActive=false is the terminal (retired) state.
type Device struct {
	DeviceID   string    `gorm:"primaryKey;size:36" json:"device_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Location   *string   `gorm:"size:255" json:"location"`
	DeviceType *string   `gorm:"size:50" json:"device_type"` // router, sensor, gateway, ...
	Status     string    `gorm:"size:20;not null;default:online" json:"status"`
	LastSeen   time.Time `gorm:"not null" json:"last_seen"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
	IsActive   bool      `gorm:"not null;default:true;index" json:"is_active"`
}
