package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"beacon-network-backend/internal/model"
)

var (
	// ErrNotFound is returned when a point lookup or targeted update matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a conditional update finds the row in
	// a state other than the one it requires.
	ErrConflict = errors.New("record state changed")
)

// Store defines the interface for all database operations.
type Store interface {
	CreateDevice(ctx context.Context, d *model.Device) error
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	DeviceExists(ctx context.Context, id string) (bool, error)
	ListActiveDevices(ctx context.Context, status string) ([]model.Device, error)
	TouchDevice(ctx context.Context, id, status string, seenAt time.Time) error
	RetireDevice(ctx context.Context, id string) error
	MarkStaleDevicesOffline(ctx context.Context, cutoff time.Time) (int64, error)

	FingerprintExists(ctx context.Context, fingerprint string) (bool, error)
	CreateMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListMessagesForDevice(ctx context.Context, deviceID string, limit, offset int) ([]model.Message, error)

	CreateListing(ctx context.Context, l *model.MarketplaceListing) error
	GetListing(ctx context.Context, id string) (*model.MarketplaceListing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]model.MarketplaceListing, error)
	ResolveListing(ctx context.Context, id, resolvedWith, status string, now time.Time) error
	SetListingAvailable(ctx context.Context, id string, available float64, now time.Time) error

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptionsExcept(ctx context.Context, deviceID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store. The *gorm.DB should be
// opened with TranslateError enabled so unique violations map to ErrDuplicate
// without relying on driver message text.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
