package shared

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSessionManager(rdb, "atelier_session", "test-secret", time.Hour, false), mr
}

func serve(handler http.Handler, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "atelier_session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	manager, mr := newManager(t)
	handler := SessionMiddleware(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if sess.User() == "" {
			sess.SetUser("operator@example.com")
			sess.AddFlash(FlashMessage{Kind: "success", Message: "Saved"})
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	cookie := sessionCookie(t, serve(handler, nil))
	assert.True(t, mr.Exists("atelier:session:"+cookie.Value))
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	var seen *Session
	reader := SessionMiddleware(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))
	serve(reader, cookie)
	require.NotNil(t, seen)
	assert.Equal(t, cookie.Value, seen.ID)
	assert.Equal(t, "operator@example.com", seen.User())
	assert.Equal(t, &FlashMessage{Kind: "success", Message: "Saved"}, seen.PopFlash())
	assert.Nil(t, seen.PopFlash())
}

func TestUnknownSessionIDIsReplaced(t *testing.T) {
	manager, _ := newManager(t)
	handler := SessionMiddleware(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := serve(handler, &http.Cookie{Name: "atelier_session", Value: "chosen-by-client"})
	assert.NotEqual(t, "chosen-by-client", sessionCookie(t, rec).Value)
}

func TestRenewMovesSession(t *testing.T) {
	manager, mr := newManager(t)
	var oldID, newID string
	handler := SessionMiddleware(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if r.URL.Query().Get("renew") == "" {
			sess.Set("k", "v")
			return
		}
		oldID = sess.ID
		require.NoError(t, manager.Renew(r.Context(), sess))
		newID = sess.ID
	}))

	cookie := sessionCookie(t, serve(handler, nil))
	req := httptest.NewRequest(http.MethodGet, "/?renew=1", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, cookie.Value, oldID)
	assert.NotEqual(t, oldID, newID)
	assert.False(t, mr.Exists("atelier:session:"+oldID))
	assert.True(t, mr.Exists("atelier:session:"+newID))
	assert.Equal(t, newID, sessionCookie(t, rec).Value)
}

func TestDestroyExpiresCookie(t *testing.T) {
	manager, mr := newManager(t)
	handler := SessionMiddleware(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/logout" {
			manager.Destroy(SessionFromContext(r.Context()))
		}
	}))
	cookie := sessionCookie(t, serve(handler, nil))

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Less(t, sessionCookie(t, rec).MaxAge, 0)
	assert.False(t, mr.Exists("atelier:session:"+cookie.Value))
}

func TestCommitErrorsReachCallback(t *testing.T) {
	manager, mr := newManager(t)
	var reported []error
	handler := SessionMiddleware(manager, func(err error) { reported = append(reported, err) })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mr.SetError("LOADING")
			_, _ = w.Write([]byte("ok"))
		}))

	rec := serve(handler, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, reported, 1)
}

func TestLoadFailureAnswers500(t *testing.T) {
	manager, mr := newManager(t)
	mr.SetError("LOADING")
	var reported error
	handler := SessionMiddleware(manager, func(err error) { reported = err })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler must not run")
		}))

	rec := serve(handler, &http.Cookie{Name: "atelier_session", Value: "abc"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Error(t, reported)
}

func TestCSRFTokens(t *testing.T) {
	csrf := NewCSRFManager("secret")
	manager, _ := newManager(t)
	sess := manager.newSession()
	ctx := context.Background()

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(ctx, sess, token))
	assert.True(t, errors.Is(csrf.VerifyToken(ctx, sess, token+"x"), ErrCSRFTokenMismatch))
	assert.True(t, errors.Is(csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing))
	assert.True(t, errors.Is(csrf.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing))

	csrf.Rotate(sess)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, token), ErrCSRFTokenMissing)
	rotated, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, rotated)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CSRFHeader, "from-header")
	assert.Equal(t, "from-header", TokenFromRequest(req))
}
