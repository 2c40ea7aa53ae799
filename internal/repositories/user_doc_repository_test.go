package repositories_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rently/internal/docstore"
	"rently/internal/metrics"
	"rently/internal/models"
	"rently/internal/repositories"
)

func newUserRepo(t *testing.T, store docstore.Store) (*repositories.DocUserRepository, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(nil)
	return repositories.NewDocUserRepository(store, m, nil, repositories.UserRepoOptions{
		Concurrency:   4,
		RetryInterval: 10 * time.Millisecond,
	}), m
}

func ids(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	sort.Strings(out)
	return out
}

func TestUserRepository_CreateStoresWithoutPassword(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := newUserRepo(t, store)
	ctx := context.Background()

	u := models.NewUser("acc-1", "Jane", "jane@example.com")
	u.Password = "secret"
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)
	assert.Equal(t, "Jane", got.FirstName)
	assert.Empty(t, got.Password)

	// Store-assigned key.
	id2, err := repo.Create(ctx, models.NewUser("", "John", "john@example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, id2)
	assert.NotEqual(t, id, id2)
}

func TestUserRepository_CreateFailure(t *testing.T) {
	store := new(MockStore)
	repo, _ := newUserRepo(t, store)
	store.On("Create", mock.Anything, repositories.UsersCollection, "", mock.Anything).
		Return("", errors.New("unavailable")).Once()

	id, err := repo.Create(context.Background(), models.NewUser("", "Jane", "jane@example.com"))
	assert.Error(t, err)
	assert.Empty(t, id)
	store.AssertExpectations(t)
}

func TestUserRepository_UpdateWithoutIDMakesNoCall(t *testing.T) {
	store := new(MockStore)
	repo, _ := newUserRepo(t, store)

	err := repo.Update(context.Background(), models.User{FirstName: "Jane"})
	assert.ErrorIs(t, err, repositories.ErrMissingID)

	err = repo.Delete(context.Background(), models.User{FirstName: "Jane"})
	assert.ErrorIs(t, err, repositories.ErrMissingID)

	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, store.Calls)
}

func TestUserRepository_UpdateOverwrites(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := newUserRepo(t, store)
	ctx := context.Background()

	u := models.NewUser("u1", "Jane", "jane@example.com")
	u.University = "Cornell"
	_, err := repo.Create(ctx, u)
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, models.User{ID: "u1", FirstName: "Janet"}))
	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Janet", got.FirstName)
	assert.Empty(t, got.University)

	require.NoError(t, repo.Delete(ctx, *got))
	_, err = repo.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestUserRepository_FollowerRoundTrip(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := newUserRepo(t, store)
	ctx := context.Background()

	u := models.NewUser("u", "Una", "u@example.com")
	u.Followers = []string{"x"}
	_, err := repo.Create(ctx, u)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AddFollower(ctx, "u", "f"))
	}
	got, err := repo.GetByID(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "f"}, got.Followers)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RemoveFollower(ctx, "u", "f"))
	}
	got, err = repo.GetByID(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Followers)

	require.NoError(t, repo.AddFollowing(ctx, "u", "g"))
	require.NoError(t, repo.RemoveFollowing(ctx, "u", "g"))
	got, err = repo.GetByID(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, got.Following)

	err = repo.AddFollower(ctx, "missing", "f")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestUserRepository_AddRejectsSelfEdge(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := newUserRepo(t, store)
	ctx := context.Background()

	u := models.NewUser("u1", "Una", "u1@example.com")
	u.Followers = []string{"u1"}
	_, err := repo.Create(ctx, u)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.AddFollower(ctx, "u1", "u1"), repositories.ErrSelfEdge)
	assert.ErrorIs(t, repo.AddFollowing(ctx, "u1", "u1"), repositories.ErrSelfEdge)

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Following)

	// A stored self-edge can still be removed.
	require.NoError(t, repo.RemoveFollower(ctx, "u1", "u1"))
	got, err = repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Followers)
}

func TestUserRepository_FetchByIDsEmptyMakesNoCall(t *testing.T) {
	store := new(MockStore)
	repo, _ := newUserRepo(t, store)

	users := repo.FetchByIDs(context.Background(), nil)
	assert.NotNil(t, users)
	assert.Empty(t, users)
	assert.Empty(t, store.Calls)
}

func TestUserRepository_FetchByIDsDropsMissing(t *testing.T) {
	store := docstore.NewMemory()
	repo, m := newUserRepo(t, store)
	ctx := context.Background()

	for _, id := range []string{"A", "C"} {
		_, err := repo.Create(ctx, models.NewUser(id, id, id+"@example.com"))
		require.NoError(t, err)
	}

	done := make(chan []models.User, 1)
	go func() { done <- repo.FetchByIDs(ctx, []string{"A", "B", "C"}) }()

	select {
	case users := <-done:
		assert.Equal(t, []string{"A", "C"}, ids(users))
	case <-time.After(2 * time.Second):
		t.Fatal("FetchByIDs did not return")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchDropped.WithLabelValues("fetch_users")))
}

func TestUserRepository_FetchByIDsDropsFailures(t *testing.T) {
	store := new(MockStore)
	repo, _ := newUserRepo(t, store)

	store.On("Get", mock.Anything, repositories.UsersCollection, "A").
		Return(nil, errors.New("timeout")).Once()
	store.On("Get", mock.Anything, repositories.UsersCollection, "B").
		Return(nil, docstore.ErrNotFound).Once()

	users := repo.FetchByIDs(context.Background(), []string{"A", "B"})
	assert.Empty(t, users)
	store.AssertExpectations(t)
}

func TestUserRepository_FetchByEmail(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := newUserRepo(t, store)
	ctx := context.Background()

	_, err := repo.Create(ctx, models.NewUser("a", "Ann", "dup@example.com"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.NewUser("b", "Bea", "dup@example.com"))
	require.NoError(t, err)

	got, err := repo.FetchByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b"}, got.ID)

	_, err = repo.FetchByEmail(ctx, "none@example.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestUserRepository_FetchAllSkipsMalformed(t *testing.T) {
	store := docstore.NewMemory()
	repo, m := newUserRepo(t, store)
	ctx := context.Background()

	_, err := repo.Create(ctx, models.NewUser("ok", "Ok", "ok@example.com"))
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, repositories.UsersCollection, "bad", map[string]any{"rating": "five"}))

	users, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, ids(users))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeDropped.WithLabelValues(repositories.UsersCollection)))
}

func TestUserRepository_FetchAllFailure(t *testing.T) {
	store := new(MockStore)
	repo, _ := newUserRepo(t, store)
	store.On("GetAll", mock.Anything, repositories.UsersCollection).Return(nil, errors.New("down")).Once()

	_, err := repo.FetchAll(context.Background())
	assert.Error(t, err)
}
