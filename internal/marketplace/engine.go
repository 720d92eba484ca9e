// Package marketplace manages resource listings published by devices and
// their single transition from available to a terminal status.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"beacon-network-backend/internal/apperr"
	"beacon-network-backend/internal/model"
	"beacon-network-backend/internal/store"
)

// Listing page bounds.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// DeviceChecker resolves the device owning a listing.
type DeviceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// CreateInput describes a new offer.
type CreateInput struct {
	DeviceID     string
	Title        string
	Description  *string
	ResourceType string
	Quantity     float64
	Unit         string
	PriceCredits float64
	ExpiresAt    *time.Time
}

// ListFilter narrows ListActive. Zero values select status "available" and
// DefaultLimit.
type ListFilter struct {
	ResourceType string
	Status       string
	Limit        int
	Offset       int
}

// Resolution reports the outcome of Resolve.
type Resolution struct {
	ListingID string `json:"listing_id"`
	Status    string `json:"status"`
}

// Engine creates, lists and resolves marketplace listings.
type Engine struct {
	store   store.Store
	devices DeviceChecker
	log     *zap.Logger
	now     func() time.Time
}

// NewEngine creates an engine backed by s.
func NewEngine(s store.Store, devices DeviceChecker, log *zap.Logger) *Engine {
	return &Engine{
		store:   s,
		devices: devices,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CreateListing publishes an offer with its full quantity available.
func (e *Engine) CreateListing(ctx context.Context, in CreateInput) (*model.MarketplaceListing, error) {
	title := strings.TrimSpace(in.Title)
	switch {
	case in.DeviceID == "":
		return nil, apperr.Invalid("device_id", "device_id must not be empty")
	case title == "":
		return nil, apperr.Invalid("title", "title must not be empty")
	case strings.TrimSpace(in.ResourceType) == "":
		return nil, apperr.Invalid("resource_type", "resource_type must not be empty")
	case strings.TrimSpace(in.Unit) == "":
		return nil, apperr.Invalid("unit", "unit must not be empty")
	case in.Quantity <= 0:
		return nil, apperr.Invalid("quantity", "quantity must be greater than 0")
	case in.PriceCredits < 0:
		return nil, apperr.Invalid("price_credits", "price_credits must not be negative")
	}

	ok, err := e.devices.Exists(ctx, in.DeviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound(apperr.CodeDeviceNotFound, in.DeviceID, "device not found")
	}

	now := e.now()
	var expiresAt *time.Time
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		expiresAt = &t
	}
	l := &model.MarketplaceListing{
		ListingID:    uuid.NewString(),
		DeviceID:     in.DeviceID,
		Title:        title,
		Description:  in.Description,
		ResourceType: strings.TrimSpace(in.ResourceType),
		Quantity:     in.Quantity,
		Unit:         strings.TrimSpace(in.Unit),
		Available:    in.Quantity,
		PriceCredits: in.PriceCredits,
		Status:       model.ListingStatusAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    expiresAt,
	}
	if err := e.store.CreateListing(ctx, l); err != nil {
		return nil, err
	}

	e.log.Info("listing created",
		zap.String("listing_id", l.ListingID),
		zap.String("device_id", l.DeviceID),
		zap.String("resource_type", l.ResourceType),
	)
	return l, nil
}

// ListActive returns unexpired listings, newest first.
func (e *Engine) ListActive(ctx context.Context, f ListFilter) ([]model.MarketplaceListing, error) {
	if f.Status == "" {
		f.Status = model.ListingStatusAvailable
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 1 || f.Limit > MaxLimit {
		return nil, apperr.Invalid("limit", fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	if f.Offset < 0 {
		return nil, apperr.Invalid("offset", "offset must not be negative")
	}

	return e.store.ListListings(ctx, store.ListingFilter{
		Status:       f.Status,
		ResourceType: f.ResourceType,
		Now:          e.now(),
		Limit:        f.Limit,
		Offset:       f.Offset,
	})
}

// Get looks up a listing by id.
func (e *Engine) Get(ctx context.Context, listingID string) (*model.MarketplaceListing, error) {
	l, err := e.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeListingNotFound, listingID, "listing not found")
	}
	return l, err
}

// Resolve moves an available listing to newStatus. Only the first
// resolution succeeds; later attempts and expired listings are conflicts.
func (e *Engine) Resolve(ctx context.Context, listingID, resolvedWith, newStatus string) (*Resolution, error) {
	newStatus = strings.TrimSpace(newStatus)
	if newStatus == "" || newStatus == model.ListingStatusAvailable {
		return nil, apperr.Invalid("status", "status must be a terminal status other than available")
	}
	if strings.TrimSpace(resolvedWith) == "" {
		return nil, apperr.Invalid("resolved_with", "resolved_with must not be empty")
	}

	now := e.now()
	err := e.store.ResolveListing(ctx, listingID, resolvedWith, newStatus, now)
	if errors.Is(err, store.ErrConflict) {
		return nil, e.classify(ctx, listingID, now)
	}
	if err != nil {
		return nil, err
	}

	e.log.Info("listing resolved",
		zap.String("listing_id", listingID),
		zap.String("resolved_with", resolvedWith),
		zap.String("status", newStatus),
	)
	return &Resolution{ListingID: listingID, Status: newStatus}, nil
}

// UpdateAvailability sets the remaining quantity of an available listing.
func (e *Engine) UpdateAvailability(ctx context.Context, listingID string, available float64) (*model.MarketplaceListing, error) {
	if available < 0 {
		return nil, apperr.Invalid("available", "available must not be negative")
	}

	l, err := e.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if available > l.Quantity {
		return nil, apperr.Invalid("available", fmt.Sprintf("available must not exceed quantity %g", l.Quantity))
	}

	now := e.now()
	err = e.store.SetListingAvailable(ctx, listingID, available, now)
	if errors.Is(err, store.ErrConflict) {
		return nil, e.classify(ctx, listingID, now)
	}
	if err != nil {
		return nil, err
	}
	return e.Get(ctx, listingID)
}

// classify explains why a conditional update on a listing matched no row.
func (e *Engine) classify(ctx context.Context, listingID string, now time.Time) error {
	l, err := e.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(apperr.CodeListingNotFound, listingID, "listing not found")
	}
	if err != nil {
		return err
	}
	if l.Status != model.ListingStatusAvailable {
		return apperr.Conflict(apperr.CodeListingAlreadyResolved, listingID, fmt.Sprintf("listing already %s", l.Status))
	}
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return apperr.Conflict(apperr.CodeListingExpired, listingID, "listing has expired")
	}
	return apperr.Conflict(apperr.CodeListingAlreadyResolved, listingID, "listing changed concurrently")
}
