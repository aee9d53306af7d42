package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-admin/atelier/internal/identity"
	"github.com/atelier-admin/atelier/internal/observability"
	"github.com/atelier-admin/atelier/internal/records/boards"
	"github.com/atelier-admin/atelier/internal/records/ingredients"
	"github.com/atelier-admin/atelier/internal/records/menus"
	"github.com/atelier-admin/atelier/internal/testing/webtest"
	"github.com/atelier-admin/atelier/jobs"
	_ "github.com/atelier-admin/atelier/testing"
)

func newTestRouter(t *testing.T, ready func(context.Context) error) (*webtest.Harness, http.Handler) {
	t.Helper()
	h := webtest.New(t)
	rdb := redis.NewClient(&redis.Options{Addr: h.Redis.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	identityService := identity.NewService(h.Backend)
	provider := identity.NewProvider(identityService, identity.NewTokenStore(rdb, time.Hour), h.Logger)
	router := NewRouter(RouterParams{
		Logger:             h.Logger,
		Config:             &Config{AppEnv: "test"},
		Pages:              h.Pages,
		SessionManager:     h.Sessions,
		CSRFManager:        h.Pages.CSRF,
		Metrics:            observability.NewMetrics(),
		IdentityHandler:    identity.NewHandler(h.Logger, identityService, provider, h.Pages.Templates, h.Sessions, h.Pages.CSRF),
		Provider:           provider,
		BoardsHandler:      boards.NewHandler(h.Logger, boards.NewService(h.Backend, h.Queries), h.Pages, h.Screens, time.Second),
		IngredientsHandler: ingredients.NewHandler(h.Logger, ingredients.NewService(h.Backend, h.Queries), h.Pages, h.Screens, time.Second),
		MenusHandler:       menus.NewHandler(h.Logger, menus.NewService(h.Backend, h.Queries), h.Pages, h.Screens),
		JobHandler:         jobs.NewHandler(nil, h.Logger),
		Ready:              ready,
	})
	return h, router
}

func TestHealthAndReadiness(t *testing.T) {
	healthy := true
	h, router := newTestRouter(t, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("redis: connection refused")
	})

	rec := h.Get(router, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = h.Get(router, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = h.Get(router, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAnonymousRequestsAreSentToLogin(t *testing.T) {
	h, router := newTestRouter(t, nil)

	for _, target := range []string{"/", boards.BasePath, menus.BasePath + "/new", "/jobs/health"} {
		rec := h.Get(router, target)
		assert.Equal(t, http.StatusSeeOther, rec.Code, target)
		assert.Equal(t, identity.LoginPath, rec.Header().Get("Location"), target)
	}

	rec := h.Get(router, identity.LoginPath)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestUnsafeRequestsNeedCSRFToken(t *testing.T) {
	h, router := newTestRouter(t, nil)

	rec := h.Post(router, identity.LoginPath, url.Values{"email": {"ops@atelier.test"}, "password": {"secret"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, h.API.Requests())

	page := h.Get(router, identity.LoginPath)
	match := regexp.MustCompile(`name="csrf_token" value="([^"]+)"`).FindStringSubmatch(page.Body.String())
	require.Len(t, match, 2)

	rec = h.Post(router, identity.LoginPath, url.Values{"csrf_token": {match[1]}, "email": {"not-an-email"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "has-error")
}

func TestStaticAssetsAreCached(t *testing.T) {
	h, router := newTestRouter(t, nil)

	rec := h.Get(router, "/static/css/app.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/css"))
}

func TestUnknownPagesRenderErrorPage(t *testing.T) {
	h, router := newTestRouter(t, nil)

	rec := h.Get(router, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "The page you asked for does not exist.")

	req := httptest.NewRequest(http.MethodDelete, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "unsafe methods are checked for a token first")
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	h, router := newTestRouter(t, nil)

	h.Get(router, "/healthz")
	rec := h.Get(router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `atelier_http_requests_total{code="200",route="/healthz"} 1`)
}
