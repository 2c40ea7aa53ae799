package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently/internal/docstore"
	"rently/internal/metrics"
	"rently/internal/models"
	"rently/internal/repositories"
)

func TestListingRepository_SaveGetDelete(t *testing.T) {
	store := docstore.NewMemory()
	repo := repositories.NewDocListingRepository(store, nil, nil)
	ctx := context.Background()

	l := models.ListingDraft{Title: "Red Jacket", Price: 20}.Promote("l1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, repo.Save(ctx, l))

	got, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Red Jacket", got.Title)
	assert.True(t, l.CreationTime.Equal(got.CreationTime))

	// Saving again replaces in place.
	l.Title = "Red Jacket (XL)"
	require.NoError(t, repo.Save(ctx, l))
	all, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Red Jacket (XL)", all[0].Title)

	require.NoError(t, repo.Delete(ctx, "l1"))
	_, err = repo.GetByID(ctx, "l1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestListingRepository_RequiresID(t *testing.T) {
	store := new(MockStore)
	repo := repositories.NewDocListingRepository(store, nil, nil)

	assert.ErrorIs(t, repo.Save(context.Background(), models.Listing{Title: "x"}), repositories.ErrMissingID)
	assert.ErrorIs(t, repo.Delete(context.Background(), ""), repositories.ErrMissingID)
	assert.Empty(t, store.Calls)
}

func TestListingRepository_FetchAllSkipsMalformed(t *testing.T) {
	store := docstore.NewMemory()
	m := metrics.New(nil)
	repo := repositories.NewDocListingRepository(store, m, nil)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, models.Listing{ID: "good", Title: "Boots"}))
	require.NoError(t, store.Set(ctx, repositories.ListingsCollection, "bad", map[string]any{"price": "cheap"}))

	all, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeDropped.WithLabelValues(repositories.ListingsCollection)))
}
