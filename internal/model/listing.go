package model

import "time"

// ListingStatusAvailable is the only non-terminal listing state. Resolution
// moves a listing to a caller-chosen terminal tag such as "sold".
const ListingStatusAvailable = "available"

// MarketplaceListing is a resource offer published by a device.
type MarketplaceListing struct {
	ListingID    string     `gorm:"primaryKey;size:36" json:"listing_id"`
	DeviceID     string     `gorm:"size:36;not null;index" json:"device_id"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  *string    `gorm:"type:text" json:"description"`
	ResourceType string     `gorm:"size:50;index" json:"resource_type"` // storage, bandwidth, computing, ...
	Quantity     float64    `gorm:"not null" json:"quantity"`
	Unit         string     `gorm:"size:50" json:"unit"` // GB, Mbps, CPU-hours, ...
	Available    float64    `gorm:"not null" json:"available"`
	PriceCredits float64    `gorm:"not null" json:"price_credits"`
	Status       string     `gorm:"size:20;not null;default:available;index" json:"status"`
	ResolvedWith *string    `gorm:"size:36" json:"resolved_with"`
	CreatedAt    time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
}
