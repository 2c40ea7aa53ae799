package repositories_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently/internal/docstore"
	"rently/internal/models"
	"rently/internal/repositories"
)

func nextUsers(t *testing.T, feed *repositories.UserFeed) []models.User {
	t.Helper()
	select {
	case users, ok := <-feed.Updates():
		require.True(t, ok, "feed closed")
		return users
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
		return nil
	}
}

// waitFor reads pushes until one satisfies cond.
func waitFor(t *testing.T, feed *repositories.UserFeed, cond func([]models.User) bool) []models.User {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case users, ok := <-feed.Updates():
			require.True(t, ok, "feed closed")
			if cond(users) {
				return users
			}
		case <-deadline:
			t.Fatal("condition not reached")
			return nil
		}
	}
}

func TestUserFeed_PushesMembershipWithKeyIDs(t *testing.T) {
	store := docstore.NewMemory()
	repo, m := newUserRepo(t, store)
	ctx := context.Background()

	// A stale id in the body must lose to the key.
	require.NoError(t, store.Set(ctx, repositories.UsersCollection, "k1", map[string]any{"id": "stale", "firstName": "Jane"}))
	require.NoError(t, store.Set(ctx, repositories.UsersCollection, "bad", map[string]any{"followers": "nope"}))

	feed, err := repo.SubscribeAll(ctx)
	require.NoError(t, err)
	defer feed.Close()

	users := nextUsers(t, feed)
	require.Len(t, users, 1)
	assert.Equal(t, "k1", users[0].ID)
	assert.Equal(t, "Jane", users[0].FirstName)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.DecodeDropped.WithLabelValues(repositories.UsersCollection)), 1.0)

	_, err = repo.Create(ctx, models.NewUser("k2", "John", "john@example.com"))
	require.NoError(t, err)
	users = waitFor(t, feed, func(u []models.User) bool { return len(u) == 2 })
	assert.Equal(t, []string{"k1", "k2"}, ids(users))
	assert.Len(t, feed.Current(), 2)

	require.NoError(t, repo.Delete(ctx, models.User{ID: "k1"}))
	users = waitFor(t, feed, func(u []models.User) bool { return len(u) == 1 })
	assert.Equal(t, "k2", users[0].ID)
}

func TestUserFeed_CloseEndsFeed(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := newUserRepo(t, store)

	feed, err := repo.SubscribeAll(context.Background())
	require.NoError(t, err)
	nextUsers(t, feed)

	feed.Close()
	_, ok := <-feed.Updates()
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return store.Subscribers(repositories.UsersCollection) == 0 },
		time.Second, 10*time.Millisecond)
}

func TestUserFeed_ContextCancelEndsFeed(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := newUserRepo(t, store)
	ctx, cancel := context.WithCancel(context.Background())

	feed, err := repo.SubscribeAll(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case <-feed.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
}

// brokenSub ends with an error after its first push.
type brokenSub struct {
	updates chan []docstore.Snapshot
}

func (b *brokenSub) Updates() <-chan []docstore.Snapshot { return b.updates }
func (b *brokenSub) Err() error                          { return errors.New("stream reset") }
func (b *brokenSub) Close()                              {}

// flakyStore hands out one broken subscription before delegating.
type flakyStore struct {
	*docstore.Memory
	mu    sync.Mutex
	calls int
}

func (f *flakyStore) Subscribe(ctx context.Context, collection string) (docstore.Subscription, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	switch n {
	case 1:
		b := &brokenSub{updates: make(chan []docstore.Snapshot)}
		close(b.updates)
		return b, nil
	case 2:
		return nil, errors.New("still down")
	}
	return f.Memory.Subscribe(ctx, collection)
}

func TestUserFeed_ResubscribesAfterFailure(t *testing.T) {
	store := &flakyStore{Memory: docstore.NewMemory()}
	repo, m := newUserRepo(t, store)
	ctx := context.Background()

	_, err := repo.Create(ctx, models.NewUser("u1", "Jane", "jane@example.com"))
	require.NoError(t, err)

	feed, err := repo.SubscribeAll(ctx)
	require.NoError(t, err)
	defer feed.Close()

	users := nextUsers(t, feed)
	assert.Equal(t, []string{"u1"}, ids(users))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resubscribes.WithLabelValues(repositories.UsersCollection)))
}

func TestUserFeed_StopsWhenStoreCloses(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := newUserRepo(t, store)

	feed, err := repo.SubscribeAll(context.Background())
	require.NoError(t, err)
	nextUsers(t, feed)

	require.NoError(t, store.Close())
	select {
	case <-feed.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after store close")
	}
}
