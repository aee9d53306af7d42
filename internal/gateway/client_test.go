package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-admin/atelier/internal/filters"
)

type record struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	contract, err := NewListContract()
	require.NoError(t, err)
	client, err := New(Options{BaseURL: srv.URL + "/api/main", Contract: contract})
	require.NoError(t, err)
	return client.WithTokens(StaticToken("tok-1"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListDecodesEnvelope(t *testing.T) {
	var seen *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "ok",
			"data": map[string]any{
				"items":      []map[string]any{{"id": 1, "title": "soap"}},
				"pagination": map[string]any{"currentPage": 2, "totalPages": 3, "hasNext": true, "hasPrevious": true},
			},
		})
	})

	data, err := List[record](context.Background(), client, "/board", url.Values{"title": {"soap"}, "page": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, []record{{ID: 1, Title: "soap"}}, data.Items)
	assert.Equal(t, filters.PageMeta{CurrentPage: 2, TotalPages: 3, HasNext: true, HasPrevious: true}, data.Pagination)

	require.NotNil(t, seen)
	assert.Equal(t, "/api/main/board", seen.URL.Path)
	assert.Equal(t, "soap", seen.URL.Query().Get("title"))
	assert.Equal(t, "Bearer tok-1", seen.Header.Get("Authorization"))
}

func TestListRejectsContractViolation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"items": []any{}},
		})
	})
	_, err := List[record](context.Background(), client, "/board", nil)
	require.Error(t, err)
	assert.Equal(t, KindContract, KindOf(err))
	assert.Contains(t, err.Error(), "pagination")
}

func TestFailureClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   any
		kind   Kind
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]any{"success": false, "message": "expired"}, KindAuth},
		{"forbidden", http.StatusForbidden, nil, KindAuth},
		{"not found", http.StatusNotFound, map[string]any{"success": false, "message": "no such id"}, KindNotFound},
		{"server error", http.StatusBadGateway, nil, KindNetwork},
		{"bad request", http.StatusBadRequest, map[string]any{"success": false, "message": "title required"}, KindRejected},
		{"envelope refusal", http.StatusOK, map[string]any{"success": false, "message": "duplicate"}, KindRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})
			_, err := Get[record](context.Background(), client, "/board/1")
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestMissingTokenIsAuthFailure(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()
	client, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	err = client.Delete(context.Background(), "/menus/1")
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.ErrorIs(t, err, ErrNoAccessToken)
	assert.False(t, called, "no request without a token")
}

func TestTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	client, err := New(Options{BaseURL: base})
	require.NoError(t, err)
	_, err = Get[record](context.Background(), client.WithTokens(StaticToken("t")), "/board/1")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestCreateSendsJSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"title":"hello"}`, string(raw))
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"id": 9, "title": "hello"}})
	})
	var out record
	require.NoError(t, client.Create(context.Background(), "/board", map[string]string{"title": "hello"}, &out))
	assert.Equal(t, 9, out.ID)
}

func TestPostJSONSkipsEnvelopeAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "a"})
	}))
	defer srv.Close()
	client, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, client.PostJSON(context.Background(), "/auth/login", map[string]string{"email": "a@b.c"}, &out))
	assert.Equal(t, "a", out.AccessToken)
}

func TestNewRejectsRelativeBase(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"})
	require.Error(t, err)
}

func TestErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := error(&Error{Kind: KindNetwork, Op: "GET /x", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "gateway: GET /x: network: boom", err.Error())
}
