package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently/internal/models"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	token := uuid.NewString()

	_, err := s.Get(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)

	u := models.NewUser("u1", "Jane", "jane@example.com")
	require.NoError(t, s.Save(ctx, Session{Token: token, User: u}, time.Minute))

	got, err := s.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.User.ID)
	assert.Equal(t, "Jane", got.User.FirstName)
	assert.WithinDuration(t, time.Now().Add(time.Minute), got.ExpiresAt, 5*time.Second)

	u.LastName = "Doe"
	require.NoError(t, s.Save(ctx, Session{Token: token, User: u}, time.Minute))
	got, err = s.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Doe", got.User.LastName)

	require.NoError(t, s.Delete(ctx, token))
	_, err = s.Get(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Save(context.Background(), Session{Token: "t"}, time.Second))
	_, err := m.Get(context.Background(), "t")
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = m.Get(context.Background(), "t")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	r := NewRedis(addr, "", 0)
	t.Cleanup(func() { r.Close() })
	require.NoError(t, r.Ping(context.Background()))
	exerciseStore(t, r)
}
