package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rently/internal/blob"
	"rently/internal/config"
	"rently/internal/docstore"
	"rently/internal/metrics"
	"rently/internal/repositories"
	"rently/internal/services"
	"rently/internal/session"
)

// memoryDeps wires the app on in-memory backends. The identity provider is
// left nil; none of these tests reach registration.
func memoryDeps(t *testing.T) appDeps {
	t.Helper()
	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store := docstore.NewMemory()
	t.Cleanup(func() { store.Close() })

	users := repositories.NewDocUserRepository(store, m, log, repositories.UserRepoOptions{Concurrency: 2})
	listings := repositories.NewDocListingRepository(store, m, log)
	events := services.NewEmitter(nil, "rently", log)

	return appDeps{
		log:      log,
		registry: reg,
		users:    users,
		accounts: services.NewAccountService(nil, users, session.NewMemory(), events, log, "test_jwt_secret", time.Hour),
		listings: services.NewListingService(listings, blob.NewMemory(), events, m, log, 2),
		follows:  services.NewFollowService(users, events, log),
		search:   services.NewSearchService(listings, users, log),
	}
}

func TestHealthCheck(t *testing.T) {
	app := newApp(memoryDeps(t))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "\"status\":\"healthy\"")
}

func TestMetricsEndpoint(t *testing.T) {
	app := newApp(memoryDeps(t))

	// One request so the http counters have a sample.
	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestUnauthenticatedAccess(t *testing.T) {
	app := newApp(memoryDeps(t))

	for _, path := range []string{"/api/v1/listings/", "/api/v1/users/", "/api/v1/search"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestLogEvent(t *testing.T) {
	handler := logEvent(zap.NewNop())
	assert.NoError(t, handler(amqp.Delivery{RoutingKey: "listing.created", Body: []byte(`{}`)}))
}

func TestOpenBackends_UnknownDriver(t *testing.T) {
	_, err := openBlob(t.Context(), config.Blob{Driver: "ftp"})
	assert.Error(t, err)

	_, _, err = openSessions(t.Context(), config.Session{Driver: "memcached"})
	assert.Error(t, err)

	s, err := openStore(t.Context(), config.Store{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	_, ok := s.(*docstore.Memory)
	assert.True(t, ok)
	s.Close()
}
