package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/practice-hub/internal/clock"
	"github.com/wolfman30/practice-hub/internal/drafts"
	"github.com/wolfman30/practice-hub/internal/ghl"
	"github.com/wolfman30/practice-hub/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/practice-hub/internal/http/middleware"
	"github.com/wolfman30/practice-hub/internal/notes"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

type staticFetcher struct{}

func (staticFetcher) Fetch(context.Context, ghl.Resource, url.Values, bool) (json.RawMessage, error) {
	return json.RawMessage(`{"users":[]}`), nil
}

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()
	logger := logging.New("error")
	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	cfg := &Config{
		Logger: logger,
		Drafts: handlers.NewDraftHandler(handlers.DraftHandlerConfig{
			Store:  drafts.NewMemoryStore(0),
			Clock:  fake,
			Logger: logger,
		}),
		GHL:   handlers.NewGHLHandler(staticFetcher{}, logger),
		Notes: handlers.NewNoteHandler(notes.NewInMemoryRepository(), nil, logger),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func serve(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthEndpoint(t *testing.T) {
	rec := serve(newTestRouter(t, nil), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterMetricsEndpoint(t *testing.T) {
	rec := serve(newTestRouter(t, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestRouterAPIRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/ghl/users", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/drafts/form-1", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/api/drafts/form-1", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/notes/missing", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(router, http.MethodPost, "/api/drafts/form-1", "").Code)
}

func TestRouterStaffAuth(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.StaffAuthSecret = "secret" })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/ghl/users", "").Code)

	claims := httpmiddleware.StaffClaims{
		Role:             "front_desk",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "staff-9", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/ghl/users", token).Code)
}

func TestRouterRateLimit(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	router := newTestRouter(t, func(cfg *Config) {
		cfg.RateLimiter = httpmiddleware.NewRateLimiter(1, 1, fake)
	})

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/ghl/users", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/api/ghl/users", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
}
