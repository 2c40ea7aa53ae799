package repositories

import (
	"context"

	"rently/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	SubscribeAll(ctx context.Context) (*UserFeed, error)
	Create(ctx context.Context, user models.User) (string, error)
	Update(ctx context.Context, user models.User) error
	Delete(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	FetchAll(ctx context.Context) ([]models.User, error)
	FetchByIDs(ctx context.Context, ids []string) []models.User
	FetchByEmail(ctx context.Context, email string) (*models.User, error)

	AddFollower(ctx context.Context, userID, followerID string) error
	RemoveFollower(ctx context.Context, userID, followerID string) error
	AddFollowing(ctx context.Context, userID, followingID string) error
	RemoveFollowing(ctx context.Context, userID, followingID string) error
}
