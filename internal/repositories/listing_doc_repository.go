package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"rently/internal/docstore"
	"rently/internal/metrics"
	"rently/internal/models"
)

// DocListingRepository is a docstore implementation of ListingRepository.
// Listings carry their own id, which is also the document key.
type DocListingRepository struct {
	store   docstore.Store
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewDocListingRepository creates a new instance of DocListingRepository.
func NewDocListingRepository(store docstore.Store, m *metrics.Metrics, log *zap.Logger) *DocListingRepository {
	if m == nil {
		m = metrics.New(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocListingRepository{store: store, metrics: m, log: log}
}

// Save overwrites the listing stored under listing.ID.
func (r *DocListingRepository) Save(ctx context.Context, listing models.Listing) error {
	if listing.ID == "" {
		return ErrMissingID
	}
	if err := r.store.Set(ctx, ListingsCollection, listing.ID, listing); err != nil {
		return fmt.Errorf("failed to save listing %s: %w", listing.ID, err)
	}
	return nil
}

func (r *DocListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	snap, err := r.store.Get(ctx, ListingsCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing %s: %w", id, err)
	}
	var l models.Listing
	if err := snap.DataTo(&l); err != nil {
		r.metrics.DecodeDropped.WithLabelValues(ListingsCollection).Inc()
		return nil, fmt.Errorf("failed to decode listing %s: %w", id, err)
	}
	l.ID = snap.ID()
	return &l, nil
}

// FetchAll reads the whole collection once, skipping malformed documents.
func (r *DocListingRepository) FetchAll(ctx context.Context) ([]models.Listing, error) {
	snaps, err := r.store.GetAll(ctx, ListingsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	listings := make([]models.Listing, 0, len(snaps))
	for _, s := range snaps {
		var l models.Listing
		if err := s.DataTo(&l); err != nil {
			r.metrics.DecodeDropped.WithLabelValues(ListingsCollection).Inc()
			r.log.Debug("skipping malformed listing", zap.String("listing_id", s.ID()), zap.Error(err))
			continue
		}
		l.ID = s.ID()
		listings = append(listings, l)
	}
	return listings, nil
}

func (r *DocListingRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	if err := r.store.Delete(ctx, ListingsCollection, id); err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", id, err)
	}
	return nil
}
