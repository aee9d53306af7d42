package menus

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-admin/atelier/internal/screens"
	"github.com/atelier-admin/atelier/internal/testing/webtest"
)

func newMenuScreens(t *testing.T) (*webtest.Harness, http.Handler) {
	t.Helper()
	h := webtest.New(t)
	h.API.Seed(apiPath, false,
		webtest.Record{"id": 1, "name": "Settings", "url": "/setting", "parentId": nil, "sortOrder": 2, "visible": true},
		webtest.Record{"id": 2, "name": "Menus", "url": "/setting/menus", "parentId": 1, "sortOrder": 1, "visible": true},
		webtest.Record{"id": 3, "name": "Board", "url": "/board", "parentId": nil, "sortOrder": 1, "visible": false},
	)
	handler := NewHandler(h.Logger, NewService(h.Backend, h.Queries), h.Pages, h.Screens)
	return h, h.Router(BasePath, func(r chi.Router) { handler.MountRoutes(r) })
}

func TestMenuListIsOrderedAndUnpaginated(t *testing.T) {
	h, router := newMenuScreens(t)

	rec := h.Get(router, BasePath)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<td>Settings</td>", "parent column")
	assert.NotContains(t, body, "/filters/add")
	assert.NotContains(t, body, `class="pagination"`)
	board, settings := strings.Index(body, `href="/menus/3"`), strings.Index(body, `href="/menus/1"`)
	require.NotEqual(t, -1, board)
	assert.Less(t, board, settings)
	assert.Equal(t, []string{"GET /menus"}, h.API.Requests())

	h.Get(router, BasePath)
	assert.Len(t, h.API.Requests(), 1, "second render served from cache")
}

func TestMenuListDropsListScreen(t *testing.T) {
	h, router := newMenuScreens(t)
	h.Get(router, BasePath)
	screens.Mount(h.Screens, h.SessionID(), "boards", func() *struct{} { return &struct{}{} })
	require.Equal(t, 1, h.Screens.Len())

	h.Get(router, BasePath)
	assert.Zero(t, h.Screens.Len())
}

func TestMenuCreateWithParent(t *testing.T) {
	h, router := newMenuScreens(t)

	rec := h.Get(router, BasePath+"/new")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="1"`)

	rec = h.Post(router, BasePath+"/new", url.Values{
		"name":      {"Ingredients"},
		"url":       {"/cosmetic/ingredient"},
		"parentId":  {"3"},
		"sortOrder": {"5"},
		"visible":   {"true"},
	})
	rec = h.Follow(t, router, rec)
	assert.Contains(t, rec.Body.String(), "Menu created")
	assert.Contains(t, rec.Body.String(), "/cosmetic/ingredient")

	records := h.API.Records(apiPath)
	require.Len(t, records, 4)
	assert.EqualValues(t, 3, records[3]["parentId"])
	assert.Equal(t, true, records[3]["visible"])
}

func TestMenuFormErrors(t *testing.T) {
	h, router := newMenuScreens(t)

	rec := h.Post(router, BasePath+"/new", url.Values{"name": {"Bad"}, "url": {"setting"}, "sortOrder": {"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Enter a whole number.")

	rec = h.Post(router, BasePath+"/new", url.Values{"name": {"Bad"}, "url": {"setting"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Must start with /.")

	rec = h.Post(router, BasePath+"/2/edit", url.Values{"name": {"Menus"}, "url": {"/setting/menus"}, "parentId": {"2"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "A menu cannot be its own parent.")
	assert.Zero(t, h.API.Count(http.MethodPost, apiPath))
	assert.Zero(t, h.API.Count(http.MethodPut, apiPath+"/2"))
}

func TestMenuDetailShowsParent(t *testing.T) {
	h, router := newMenuScreens(t)

	rec := h.Get(router, BasePath+"/2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<dd>Settings</dd>")
}

func TestMenuDeleteInvalidatesList(t *testing.T) {
	h, router := newMenuScreens(t)
	h.Get(router, BasePath)

	rec := h.Post(router, BasePath+"/3/delete", nil)
	rec = h.Follow(t, router, rec)
	assert.Contains(t, rec.Body.String(), "Menu deleted")
	assert.NotContains(t, rec.Body.String(), `href="/menus/3"`)
	assert.Equal(t, 2, h.API.Count(http.MethodGet, apiPath))
}
