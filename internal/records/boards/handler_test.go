package boards

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-admin/atelier/internal/testing/webtest"
)

func newBoardScreens(t *testing.T, posts int) (*webtest.Harness, http.Handler) {
	t.Helper()
	h := webtest.New(t)
	records := make([]webtest.Record, 0, posts)
	for i := 1; i <= posts; i++ {
		records = append(records, webtest.Record{
			"id":        i,
			"title":     "Post " + strconv.Itoa(i),
			"content":   "Body of post " + strconv.Itoa(i),
			"createDtm": "2025-01-0" + strconv.Itoa(i%9+1),
		})
	}
	h.API.Seed(apiPath, true, records...)

	handler := NewHandler(h.Logger, NewService(h.Backend, h.Queries), h.Pages, h.Screens, 2*time.Second)
	return h, h.Router(BasePath, func(r chi.Router) { handler.MountRoutes(r) })
}

func TestListShowsFirstPage(t *testing.T) {
	h, router := newBoardScreens(t, 5)

	rec := h.Get(router, BasePath)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Post 1")
	assert.Contains(t, body, "Post 3")
	assert.NotContains(t, body, "Post 4")
	assert.Contains(t, body, `href="/boards/2"`)
	assert.Equal(t, 1, h.API.Count(http.MethodGet, apiPath))
}

func TestSearchCommitsTitleFilter(t *testing.T) {
	h, router := newBoardScreens(t, 5)
	h.Get(router, BasePath)

	rec := h.Post(router, BasePath+"/filters/add", url.Values{"field": {"title"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = h.Post(router, BasePath+"/search", url.Values{"title": {"Post 4"}})
	rec = h.Follow(t, router, rec)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Post 4")
	assert.NotContains(t, body, "Post 1<")
	assert.Contains(t, body, `name="title"`)

	requests := h.API.Requests()
	assert.Contains(t, requests[len(requests)-1], "title=Post+4")
}

func TestSearchKeepsChosenOrderSelected(t *testing.T) {
	h, router := newBoardScreens(t, 5)
	h.Get(router, BasePath)

	rec := h.Post(router, BasePath+"/search", url.Values{"sort": {"createDtm"}, "order": {"asc"}})
	rec = h.Follow(t, router, rec)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `<option value="ASC" selected>`)
	assert.Contains(t, body, `<option value="DESC" >`)
	assert.Contains(t, body, `<option value="createDtm" selected>`)
	requests := h.API.Requests()
	assert.Contains(t, requests[len(requests)-1], "order=ASC")

	// Resubmitting the rendered form must not flip the order back.
	rec = h.Post(router, BasePath+"/search", url.Values{"sort": {"createDtm"}, "order": {"ASC"}})
	rec = h.Follow(t, router, rec)
	assert.Contains(t, rec.Body.String(), `<option value="ASC" selected>`)
}

func TestPageMovesWithinKnownRange(t *testing.T) {
	h, router := newBoardScreens(t, 7)
	h.Get(router, BasePath)

	rec := h.Post(router, BasePath+"/page", url.Values{"page": {"3"}})
	rec = h.Follow(t, router, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post 7")
	assert.NotContains(t, rec.Body.String(), "Post 1<")

	before := h.API.Count(http.MethodGet, apiPath)
	rec = h.Post(router, BasePath+"/page", url.Values{"page": {"9"}})
	h.Follow(t, router, rec)
	assert.Equal(t, before, h.API.Count(http.MethodGet, apiPath), "out of range page must not load")
}

func TestCreateInvalidatesList(t *testing.T) {
	h, router := newBoardScreens(t, 1)
	h.Get(router, BasePath)

	rec := h.Post(router, BasePath+"/new", url.Values{"title": {"Launch notes"}, "content": {"Shipping soon"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, BasePath, rec.Header().Get("Location"))

	rec = h.Follow(t, router, rec)
	body := rec.Body.String()
	assert.Contains(t, body, "Post created")
	assert.Contains(t, body, "Launch notes")
	assert.Len(t, h.API.Records(apiPath), 2)
	assert.Equal(t, 2, h.API.Count(http.MethodGet, apiPath))
}

func TestCreateRejectsMissingFields(t *testing.T) {
	h, router := newBoardScreens(t, 0)

	rec := h.Post(router, BasePath+"/new", url.Values{"title": {""}, "content": {"text"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "This field is required.")
	assert.Equal(t, 0, h.API.Count(http.MethodPost, apiPath))
}

func TestShowDetail(t *testing.T) {
	h, router := newBoardScreens(t, 2)

	rec := h.Get(router, BasePath+"/2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Body of post 2")

	rec = h.Get(router, BasePath+"/42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "The record does not exist any more.")

	rec = h.Get(router, BasePath+"/abc")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRefreshesDetail(t *testing.T) {
	h, router := newBoardScreens(t, 1)
	rec := h.Get(router, BasePath+"/1")
	require.Contains(t, rec.Body.String(), "Post 1")

	rec = h.Get(router, BasePath+"/1/edit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Post 1"`)

	rec = h.Post(router, BasePath+"/1/edit", url.Values{"title": {"Renamed"}, "content": {"New body"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, BasePath+"/1", rec.Header().Get("Location"))

	rec = h.Follow(t, router, rec)
	body := rec.Body.String()
	assert.Contains(t, body, "Post updated")
	assert.Contains(t, body, "New body")
	assert.Equal(t, 2, h.API.Count(http.MethodGet, apiPath+"/1"))
}

func TestDeleteRemovesRecord(t *testing.T) {
	h, router := newBoardScreens(t, 2)

	rec := h.Post(router, BasePath+"/1/delete", nil)
	rec = h.Follow(t, router, rec)
	assert.Contains(t, rec.Body.String(), "Post deleted")
	assert.NotContains(t, rec.Body.String(), "Post 1<")
	assert.Len(t, h.API.Records(apiPath), 1)

	rec = h.Post(router, BasePath+"/1/delete", nil)
	assert.Equal(t, BasePath+"/1", rec.Header().Get("Location"))
	rec = h.Follow(t, router, rec)
	assert.Contains(t, rec.Body.String(), "The record does not exist any more.")
}

func TestBackendFailureRendersMessage(t *testing.T) {
	h, router := newBoardScreens(t, 3)
	h.API.Fail(http.MethodGet, apiPath, http.StatusInternalServerError)

	rec := h.Get(router, BasePath)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not load data from the backend. Try again.")
}
