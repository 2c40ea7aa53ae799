// Package session keeps the signed-in user for each issued token. Callers
// refresh it after successful profile writes; repositories never touch it.
package session

import (
	"context"
	"errors"
	"time"

	"rently/internal/models"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type Store interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}
