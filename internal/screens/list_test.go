package screens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-admin/atelier/internal/filters"
	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/query"
)

type post struct {
	ID    int
	Title string
}

const (
	fieldTitle    filters.FieldName = "title"
	fieldDateFrom filters.FieldName = "dateFrom"
)

var postCatalog = filters.MustCatalog(
	filters.FieldConfig{Field: fieldTitle, Label: "Title", Kind: filters.KindText},
	filters.FieldConfig{Field: fieldDateFrom, Label: "From", Kind: filters.KindDate},
)

type backend struct {
	mu    sync.Mutex
	calls []filters.SearchParams
	fail  error
}

func (b *backend) fetch(ctx context.Context, params filters.SearchParams) (gateway.ListData[post], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, params)
	if b.fail != nil {
		return gateway.ListData[post]{}, b.fail
	}
	title, _ := params.Get(fieldTitle)
	return gateway.ListData[post]{
		Items: []post{{ID: params.Page, Title: title.String()}},
		Pagination: filters.PageMeta{
			CurrentPage: params.Page,
			TotalPages:  3,
			HasNext:     params.Page < 3,
			HasPrevious: params.Page > 1,
		},
	}, nil
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *backend) last() filters.SearchParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

func newPostList(t *testing.T, b *backend) (*List[post], *query.Client) {
	t.Helper()
	client := query.NewClient(query.Options{})
	list := NewList(ListConfig[post]{
		Catalog:      postCatalog,
		Defaults:     filters.Defaults{Limit: 3, Order: filters.OrderDesc},
		Cache:        query.Register[gateway.ListData[post]](client, "boards"),
		Fetch:        b.fetch,
		AwaitTimeout: 2 * time.Second,
	})
	return list, client
}

func TestListSearchThenPage(t *testing.T) {
	b := &backend{}
	list, _ := newPostList(t, b)
	ctx := context.Background()

	st := list.State(ctx)
	require.Equal(t, query.StatusSuccess, st.Result.Status)
	assert.Equal(t, 1, b.count())

	require.True(t, list.AddFilter(fieldTitle))
	require.True(t, list.AddFilter(fieldDateFrom))
	list.Search(ctx, map[filters.FieldName]string{fieldTitle: "soap", fieldDateFrom: "2024-01-01"}, "", "")
	st = list.State(ctx)
	assert.Equal(t, "soap", st.Result.Data.Items[0].Title)
	assert.Equal(t, 2, b.count())

	require.True(t, list.GoToPage(ctx, 2))
	st = list.State(ctx)
	assert.Equal(t, 2, st.Result.Data.Pagination.CurrentPage)

	want := "dateFrom=2024-01-01&limit=3&order=DESC&page=2&title=soap"
	if diff := cmp.Diff(want, b.last().Values().Encode()); diff != "" {
		t.Fatalf("committed params mismatch (-want +got):\n%s", diff)
	}
}

func TestListPageOutOfRangeIsIgnored(t *testing.T) {
	b := &backend{}
	list, _ := newPostList(t, b)
	ctx := context.Background()
	list.State(ctx)

	assert.False(t, list.GoToPage(ctx, 0))
	assert.False(t, list.GoToPage(ctx, 4))
	list.State(ctx)
	assert.Equal(t, 1, b.count())
}

func TestListRenderServesCacheWithoutRefetch(t *testing.T) {
	b := &backend{}
	list, _ := newPostList(t, b)
	ctx := context.Background()
	list.State(ctx)
	list.State(ctx)
	list.State(ctx)
	assert.Equal(t, 1, b.count())
}

func TestListDoesNotRetryFailuresOnRender(t *testing.T) {
	b := &backend{fail: errors.New("connection refused")}
	list, _ := newPostList(t, b)
	ctx := context.Background()

	st := list.State(ctx)
	require.True(t, st.Result.Failed())
	list.State(ctx)
	assert.Equal(t, 1, b.count(), "rendering again is not a retry")

	b.mu.Lock()
	b.fail = nil
	b.mu.Unlock()
	list.Search(ctx, nil, "", "")
	st = list.State(ctx)
	assert.Equal(t, query.StatusSuccess, st.Result.Status)
	assert.Equal(t, 2, b.count())
}

func TestListReloadsAfterInvalidation(t *testing.T) {
	b := &backend{}
	list, client := newPostList(t, b)
	ctx := context.Background()
	list.State(ctx)

	require.NoError(t, client.Invalidate(ctx, "boards"))
	st := list.State(ctx)
	assert.Equal(t, query.StatusSuccess, st.Result.Status)
	assert.False(t, st.Result.Stale)
	assert.Equal(t, 2, b.count())
}

func TestListResetReturnsToFirstPage(t *testing.T) {
	b := &backend{}
	list, _ := newPostList(t, b)
	ctx := context.Background()
	list.State(ctx)
	list.AddFilter(fieldTitle)
	list.Search(ctx, map[filters.FieldName]string{fieldTitle: "soap"}, "", "")
	list.State(ctx)
	list.GoToPage(ctx, 3)

	params := list.Reset(ctx)
	assert.Empty(t, params.Filters)
	assert.Equal(t, 1, params.Page)
	st := list.State(ctx)
	assert.Empty(t, st.Active)
	assert.Equal(t, "limit=3&order=DESC&page=1", st.Committed.Values().Encode())
	assert.Equal(t, 1, st.Result.Data.Pagination.CurrentPage)
	assert.Eventually(t, func() bool { return b.count() == 3 }, time.Second, 5*time.Millisecond,
		"the unfiltered first page is served from cache")
}

func TestListSearchIgnoresInactiveDrafts(t *testing.T) {
	b := &backend{}
	list, _ := newPostList(t, b)
	ctx := context.Background()
	params := list.Search(ctx, map[filters.FieldName]string{fieldTitle: "soap"}, "", "")
	assert.Empty(t, params.Filters)
}

func TestListPublishesCommitEvents(t *testing.T) {
	b := &backend{}
	list, client := newPostList(t, b)
	var events []query.Event
	client.Bus().Subscribe(func(e query.Event) {
		if e.Kind == query.EventCommitted {
			events = append(events, e)
		}
	})
	list.Search(context.Background(), nil, "createDtm", filters.OrderAsc)
	require.Len(t, events, 1)
	assert.Equal(t, "boards", events[0].Resource)
	assert.Contains(t, events[0].Key.Params, "order=ASC")
	assert.Contains(t, events[0].Key.Params, "sort=createDtm")
}

func TestListFailedSearchDropsPageControls(t *testing.T) {
	b := &backend{}
	list, _ := newPostList(t, b)
	ctx := context.Background()
	st := list.State(ctx)
	require.Equal(t, 3, st.Controls.Total)

	b.mu.Lock()
	b.fail = errors.New("connection refused")
	b.mu.Unlock()
	require.True(t, list.AddFilter(fieldTitle))
	list.Search(ctx, map[filters.FieldName]string{fieldTitle: "soap"}, "", "")

	st = list.State(ctx)
	require.True(t, st.Result.Failed())
	assert.Zero(t, st.Controls.Total)
	assert.Empty(t, st.Controls.Pages)
	assert.False(t, list.GoToPage(ctx, 3))
	assert.Equal(t, 2, b.count())
}

func TestListsOfDifferentPrincipalsLoadSeparately(t *testing.T) {
	b := &backend{}
	client := query.NewClient(query.Options{})
	cache := query.Register[gateway.ListData[post]](client, "boards")
	mount := func() *List[post] {
		return NewList(ListConfig[post]{
			Catalog:      postCatalog,
			Defaults:     filters.Defaults{Limit: 3},
			Cache:        cache,
			Fetch:        b.fetch,
			AwaitTimeout: 2 * time.Second,
		})
	}

	alice := query.WithScope(context.Background(), "alice@atelier.test")
	bob := query.WithScope(context.Background(), "bob@atelier.test")
	mount().State(alice)
	mount().State(alice)
	assert.Equal(t, 1, b.count(), "one principal shares its entries")

	st := mount().State(bob)
	require.Equal(t, query.StatusSuccess, st.Result.Status)
	assert.Equal(t, 2, b.count(), "another principal loads with its own token")
}
