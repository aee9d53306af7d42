package ingredients

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-admin/atelier/internal/testing/webtest"
)

func newIngredientScreens(t *testing.T) (*webtest.Harness, http.Handler) {
	t.Helper()
	h := webtest.New(t)
	h.API.Seed(apiPath, true,
		webtest.Record{"id": 1, "nameEnglish": "Glycerin", "nameKorean": "글리세린", "casNo": "56-81-5", "func": "Humectant"},
		webtest.Record{"id": 2, "nameEnglish": "Niacinamide", "nameKorean": "나이아신아마이드", "casNo": "98-92-0", "func": "Brightening"},
		webtest.Record{"id": 3, "nameEnglish": "Squalane", "nameKorean": "스쿠알란", "casNo": "111-01-3", "func": "Emollient"},
	)
	handler := NewHandler(h.Logger, NewService(h.Backend, h.Queries), h.Pages, h.Screens, 2*time.Second)
	return h, h.Router(BasePath, func(r chi.Router) { handler.MountRoutes(r) })
}

func TestIngredientListAndKeywordSearch(t *testing.T) {
	h, router := newIngredientScreens(t)

	rec := h.Get(router, BasePath)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Glycerin")
	assert.Contains(t, rec.Body.String(), "스쿠알란")
	assert.Contains(t, h.API.Requests()[0], "limit=10")

	h.Post(router, BasePath+"/filters/add", url.Values{"field": {"keyword"}})
	rec = h.Post(router, BasePath+"/search", url.Values{"keyword": {"niacin"}})
	rec = h.Follow(t, router, rec)

	body := rec.Body.String()
	assert.Contains(t, body, "Niacinamide")
	assert.NotContains(t, body, "Glycerin")
	assert.Contains(t, body, `value="niacin"`)
}

func TestIngredientResetDropsKeyword(t *testing.T) {
	h, router := newIngredientScreens(t)
	h.Get(router, BasePath)
	h.Post(router, BasePath+"/filters/add", url.Values{"field": {"keyword"}})
	h.Post(router, BasePath+"/search", url.Values{"keyword": {"squa"}})

	rec := h.Post(router, BasePath+"/reset", nil)
	rec = h.Follow(t, router, rec)
	body := rec.Body.String()
	assert.Contains(t, body, "Glycerin")
	assert.Contains(t, body, "Squalane")
	assert.NotContains(t, body, `name="keyword"`)
}

func TestIngredientCreateAndShow(t *testing.T) {
	h, router := newIngredientScreens(t)

	rec := h.Post(router, BasePath+"/new", url.Values{
		"nameEnglish": {"Panthenol"},
		"nameKorean":  {"판테놀"},
		"casNo":       {"81-13-0"},
		"func":        {"Soothing"},
	})
	rec = h.Follow(t, router, rec)
	assert.Contains(t, rec.Body.String(), "Ingredient created")
	assert.Contains(t, rec.Body.String(), "Panthenol")

	rec = h.Get(router, BasePath+"/4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "81-13-0")
	assert.Contains(t, rec.Body.String(), "판테놀")
}

func TestIngredientValidation(t *testing.T) {
	h, router := newIngredientScreens(t)

	rec := h.Post(router, BasePath+"/new", url.Values{"nameEnglish": {"Only English"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "This field is required.")
	assert.Contains(t, rec.Body.String(), `value="Only English"`)
	assert.Zero(t, h.API.Count(http.MethodPost, apiPath))
}

func TestIngredientUpdateRejectedByBackend(t *testing.T) {
	h, router := newIngredientScreens(t)
	h.API.Fail(http.MethodPut, apiPath+"/2", http.StatusConflict)

	rec := h.Post(router, BasePath+"/2/edit", url.Values{"nameEnglish": {"Niacinamide B3"}, "nameKorean": {"나이아신아마이드"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Conflict")

	h.API.Fail(http.MethodPut, apiPath+"/2", 0)
	rec = h.Post(router, BasePath+"/2/edit", url.Values{"nameEnglish": {"Niacinamide B3"}, "nameKorean": {"나이아신아마이드"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = h.Follow(t, router, rec)
	assert.Contains(t, rec.Body.String(), "Niacinamide B3")
}
