// Package webtest runs record screens against an in-memory backend with real
// Redis-backed sessions.
package webtest

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/identity"
	"github.com/atelier-admin/atelier/internal/query"
	"github.com/atelier-admin/atelier/internal/screens"
	"github.com/atelier-admin/atelier/internal/shared"
	"github.com/atelier-admin/atelier/internal/view"
)

// Operator is the signed-in user of every harness request.
const Operator = "operator@example.com"

// Harness bundles the collaborators a record handler needs.
type Harness struct {
	API      *API
	Redis    *miniredis.Miniredis
	Sessions *shared.SessionManager
	Pages    *screens.Pages
	Screens  *screens.Store
	Queries  *query.Client
	Backend  *gateway.Client
	Logger   *slog.Logger

	cookies map[string]*http.Cookie
}

// New starts the backend and Redis for one test.
func New(t testing.TB) *Harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	api := NewAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	contract, err := gateway.NewListContract()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := gateway.New(gateway.Options{BaseURL: srv.URL, Contract: contract, Logger: logger})
	require.NoError(t, err)

	engine, err := view.NewEngine()
	require.NoError(t, err)

	return &Harness{
		API:      api,
		Redis:    mr,
		Sessions: shared.NewSessionManager(rdb, "atelier_session", "test-secret", time.Hour, false),
		Pages: &screens.Pages{
			Templates: engine,
			CSRF:      shared.NewCSRFManager("test-secret"),
			Logger:    logger,
		},
		Screens: screens.NewStore(time.Hour),
		Queries: query.NewClient(query.Options{Logger: logger}),
		Backend: backend,
		Logger:  logger,
		cookies: make(map[string]*http.Cookie),
	}
}

// Router mounts routes at base behind the session middleware, signed in as
// Operator with a static access token and Operator's cache scope.
func (h *Harness) Router(base string, mount func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(shared.SessionMiddleware(h.Sessions, nil))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := identity.ContextWithTokens(r.Context(), gateway.StaticToken("test-token"))
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				if sess.User() == "" {
					sess.SetUser(Operator)
				}
				ctx = query.WithScope(ctx, sess.User())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route(base, mount)
	return r
}

// Get sends a GET carrying the harness cookies.
func (h *Harness) Get(handler http.Handler, target string) *httptest.ResponseRecorder {
	return h.do(handler, httptest.NewRequest(http.MethodGet, target, nil))
}

// Post sends a form POST carrying the harness cookies.
func (h *Harness) Post(handler http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(handler, req)
}

// Follow issues a GET to the Location of a redirect.
func (h *Harness) Follow(t testing.TB, handler http.Handler, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	location := rec.Header().Get("Location")
	require.NotEmpty(t, location)
	return h.Get(handler, location)
}

// SessionID returns the session cookie issued so far, or "".
func (h *Harness) SessionID() string {
	if c, ok := h.cookies["atelier_session"]; ok {
		return c.Value
	}
	return ""
}

func (h *Harness) do(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	for _, c := range h.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(h.cookies, c.Name)
			continue
		}
		h.cookies[c.Name] = &http.Cookie{Name: c.Name, Value: c.Value}
	}
	return rec
}
