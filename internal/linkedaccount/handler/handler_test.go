package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunelink/internal/linkedaccount/metrics"
	"tunelink/internal/linkedaccount/service"
	eventstore "tunelink/internal/linkedaccount/store/event"
	lockstore "tunelink/internal/linkedaccount/store/lock"
	tokenstore "tunelink/internal/linkedaccount/store/token"
	usermodels "tunelink/internal/user/models"
	userstore "tunelink/internal/user/store"
	id "tunelink/pkg/domain"
	"tunelink/pkg/platform/middleware"
	"tunelink/pkg/testutil"
)

var testMetrics = metrics.New()

// nullPublisher satisfies the publisher dependency for endpoints that never
// reach the publish path in these tests.
type nullPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *nullPublisher) Publish(context.Context, string, []byte, []byte, map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return nil
}

func newRouter(t *testing.T) (chi.Router, *userstore.MemoryStore, id.UserID) {
	t.Helper()
	users := userstore.NewMemory()
	svc := service.New(service.Deps{
		Events:    eventstore.NewMemory(),
		Users:     users,
		Tokens:    tokenstore.NewMemory(),
		Locks:     lockstore.NewMemory(),
		Publisher: &nullPublisher{},
		Metrics:   testMetrics,
		Logger:    slog.New(slog.DiscardHandler),
	})

	userID := id.UserID(uuid.New())
	now := time.Now().UTC()
	require.NoError(t, users.Save(context.Background(), &usermodels.User{
		ID:        userID,
		Email:     "listener@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	router := chi.NewRouter()
	router.Use(middleware.RequestMetadata, middleware.RequireUser)
	New(svc, slog.New(slog.DiscardHandler)).Register(router)
	return router, users, userID
}

func TestAddAccountRequiresIdentity(t *testing.T) {
	router, _, _ := newRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/accounts", map[string]string{
		"platform":   "spotify",
		"account_id": "artist-1",
	})
	rec := testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddAccountValidation(t *testing.T) {
	router, _, userID := newRouter(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing platform", map[string]string{"account_id": "artist-1"}, http.StatusBadRequest},
		{"missing account id", map[string]string{"platform": "spotify"}, http.StatusBadRequest},
		{"unknown platform", map[string]string{"platform": "myspace", "account_id": "a"}, http.StatusBadRequest},
		{"non-verifiable platform", map[string]string{"platform": "applemusic", "account_id": "a"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/accounts", tc.body)
			req.Header.Set("X-User-ID", userID.String())
			rec := testutil.DoRequest(router, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAddAccountMalformedBody(t *testing.T) {
	router, _, userID := newRouter(t)

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/accounts", "{not json")
	req.Header.Set("X-User-ID", userID.String())
	rec := testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountLifecycleViaHandlers(t *testing.T) {
	router, _, userID := newRouter(t)

	// Link the account.
	req := testutil.NewJSONRequest(t, http.MethodPost, "/accounts", map[string]string{
		"platform":   "spotify",
		"account_id": "artist-1",
	})
	req.Header.Set("X-User-ID", userID.String())
	rec := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AddAccountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.True(t, created.OK)
	assert.Equal(t, "artist-1", created.AccountID)

	// Linking again conflicts.
	req = testutil.NewJSONRequest(t, http.MethodPost, "/accounts", map[string]string{
		"platform":   "spotify",
		"account_id": "artist-1",
	})
	req.Header.Set("X-User-ID", userID.String())
	rec = testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Fetch the challenge token.
	req = testutil.NewRequest(t, http.MethodGet, "/accounts/artist-1/token")
	req.Header.Set("X-User-ID", userID.String())
	rec = testutil.DoRequest(router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var token TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&token))
	assert.Contains(t, token.Token, "tunelink-spotify-")

	// Start verification.
	req = testutil.NewRequest(t, http.MethodPost, "/accounts/artist-1/verify")
	req.Header.Set("X-User-ID", userID.String())
	rec = testutil.DoRequest(router, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// A second initiation is refused while the lock is held.
	req = testutil.NewRequest(t, http.MethodPost, "/accounts/artist-1/verify")
	req.Header.Set("X-User-ID", userID.String())
	rec = testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Read the projection state.
	req = testutil.NewRequest(t, http.MethodGet, "/accounts/artist-1/state")
	req.Header.Set("X-User-ID", userID.String())
	rec = testutil.DoRequest(router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var state StateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&state))
	assert.Equal(t, "token_issued", state.Status)
	assert.False(t, state.CreatedAt.IsZero())

	// Unlink, twice; both succeed.
	req = testutil.NewRequest(t, http.MethodDelete, "/accounts/artist-1")
	req.Header.Set("X-User-ID", userID.String())
	rec = testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = testutil.NewRequest(t, http.MethodDelete, "/accounts/artist-1")
	req.Header.Set("X-User-ID", userID.String())
	rec = testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// State for the unlinked account is gone with the ref.
	req = testutil.NewRequest(t, http.MethodGet, "/accounts/artist-1/state")
	req.Header.Set("X-User-ID", userID.String())
	rec = testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTokenUnknownAccount(t *testing.T) {
	router, _, userID := newRouter(t)

	req := testutil.NewRequest(t, http.MethodGet, "/accounts/never-linked/token")
	req.Header.Set("X-User-ID", userID.String())
	rec := testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
