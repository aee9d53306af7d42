package audit

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-admin/atelier/internal/testing/webtest"
)

func newChangeLog(t *testing.T, service TimelineService) (*webtest.Harness, http.Handler, *Handler) {
	t.Helper()
	h := webtest.New(t)
	handler := NewHandler(h.Logger, service, h.Pages, []string{"boards", "ingredients", "menus"})
	handler.now = func() time.Time { return time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC) }
	return h, h.Router(BasePath, handler.MountRoutes), handler
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	store := &stubStore{rows: []Entry{entryAt("2025-03-10T10:00:00Z", "update", "boards", "7")}}
	h, router, _ := newChangeLog(t, NewService(store))

	rec := h.Get(router, BasePath)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="2025-03-05"`)
	assert.Contains(t, body, `value="2025-03-12"`)
	assert.Contains(t, body, "#7")
	assert.Contains(t, body, "2025-03-10 10:00")

	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), store.last.FromAt.Time)
	assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), store.last.ToAt.Time)
}

func TestTimelineLinksNextPage(t *testing.T) {
	rows := make([]Entry, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, entryAt("2025-03-10T10:00:00Z", "delete", "menus", ""))
	}
	h, router, _ := newChangeLog(t, NewService(&stubStore{rows: rows}))

	rec := h.Get(router, BasePath+"?page_size=2&resource=menus")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "page=2")
	assert.Contains(t, body, "resource=menus")
	assert.NotContains(t, body, ">Previous<")
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	h, router, _ := newChangeLog(t, NewService(&stubStore{}))

	rec := h.Get(router, BasePath+"?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dates must look like 2006-01-31.")

	rec = h.Get(router, BasePath+"?from=2025-03-12&to=2025-03-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.Get(router, BasePath+"?page=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportWritesCSV(t *testing.T) {
	store := &stubStore{rows: []Entry{
		entryAt("2025-03-10T10:00:00Z", "update", "boards", "7"),
		entryAt("2025-03-09T08:00:00Z", "create", "ingredients", ""),
	}}
	h, router, _ := newChangeLog(t, NewService(store))

	rec := h.Get(router, BasePath+"/export.csv?action=update")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "occurred_at,actor,action,resource,record_id", lines[0])
	assert.Equal(t, "2025-03-10T10:00:00Z,operator@example.com,update,boards,7", lines[1])
	assert.Equal(t, "update", store.last.Action.String)
}

func TestChangeLogDisabled(t *testing.T) {
	h, router, _ := newChangeLog(t, nil)

	rec := h.Get(router, BasePath)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "The change log is not enabled on this console.")

	rec = h.Get(router, BasePath+"/export.csv")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
