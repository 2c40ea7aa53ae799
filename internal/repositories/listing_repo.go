package repositories

import (
	"context"

	"rently/internal/models"
)

// ListingRepository defines the interface for listing data access.
type ListingRepository interface {
	Save(ctx context.Context, listing models.Listing) error
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	FetchAll(ctx context.Context) ([]models.Listing, error)
	Delete(ctx context.Context, id string) error
}
