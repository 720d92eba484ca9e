package store

import "time"

// ListingFilter selects marketplace listings. Listings whose expiry is at or
// before Now are never returned.
type ListingFilter struct {
	Status       string
	ResourceType string
	Now          time.Time
	Limit        int
	Offset       int
}
