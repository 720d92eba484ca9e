package store

import (
	"context"
	"fmt"
	"time"

	"beacon-network-backend/internal/model"
)

func (s *gormStore) CreateListing(ctx context.Context, l *model.MarketplaceListing) error {
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("failed to create listing %s: %w", l.ListingID, err)
	}
	return nil
}

func (s *gormStore) GetListing(ctx context.Context, id string) (*model.MarketplaceListing, error) {
	var l model.MarketplaceListing
	if err := s.db.WithContext(ctx).Where("listing_id = ?", id).First(&l).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *gormStore) ListListings(ctx context.Context, f ListingFilter) ([]model.MarketplaceListing, error) {
	q := s.db.WithContext(ctx).Where("status = ?", f.Status)
	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}
	q = q.Where("(expires_at IS NULL OR expires_at > ?)", f.Now)

	var listings []model.MarketplaceListing
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to list marketplace listings: %w", err)
	}
	return listings, nil
}

// ResolveListing moves an open listing to a terminal status. The write is a
// compare-and-swap on status=available and non-expiry, so concurrent
// resolutions cannot both win; a lost race or a missing row yields
// ErrConflict and the caller inspects the row to tell them apart.
func (s *gormStore) ResolveListing(ctx context.Context, id, resolvedWith, status string, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.MarketplaceListing{}).
		Where("listing_id = ? AND status = ?", id, model.ListingStatusAvailable).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Updates(map[string]any{
			"status":        status,
			"resolved_with": resolvedWith,
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to resolve listing %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// SetListingAvailable updates the remaining quantity of an open listing,
// refusing values above the offered quantity.
func (s *gormStore) SetListingAvailable(ctx context.Context, id string, available float64, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.MarketplaceListing{}).
		Where("listing_id = ? AND status = ? AND quantity >= ?", id, model.ListingStatusAvailable, available).
		Updates(map[string]any{"available": available, "updated_at": now})
	if res.Error != nil {
		return fmt.Errorf("failed to update listing %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
