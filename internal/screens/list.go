package screens

import (
	"context"
	"sync"
	"time"

	"github.com/atelier-admin/atelier/internal/filters"
	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/query"
)

// Fetch loads one page of records for committed parameters.
type Fetch[T any] func(ctx context.Context, params filters.SearchParams) (gateway.ListData[T], error)

// ListConfig describes a paginated list screen.
type ListConfig[T any] struct {
	Catalog  *filters.Catalog
	Defaults filters.Defaults
	Cache    *query.Cache[gateway.ListData[T]]
	Fetch    Fetch[T]
	// AwaitTimeout bounds how long State waits for a pending load before
	// rendering the loading state.
	AwaitTimeout time.Duration
}

// List is the live state of one list screen: filter controller, paginator and
// the query view. Requests of one session may arrive concurrently, so every
// method serialises on the screen.
type List[T any] struct {
	mu      sync.Mutex
	ctrl    *filters.Controller
	pager   *filters.Paginator
	cache   *query.Cache[gateway.ListData[T]]
	view    *query.View[gateway.ListData[T]]
	fetch   Fetch[T]
	await   time.Duration
	pending *filters.CommitEvent
}

// State is a consistent snapshot for rendering.
type State[T any] struct {
	Fields    []filters.FieldConfig
	Active    []filters.ActiveFilter
	Available []filters.FieldConfig
	Form      filters.FormState
	Sort      string
	Order     filters.Order
	Committed filters.SearchParams
	Result    query.Result[gateway.ListData[T]]
	Controls  filters.Controls
}

// NewList mounts a list screen with the default parameters committed.
func NewList[T any](cfg ListConfig[T]) *List[T] {
	ctrl := filters.NewController(cfg.Catalog, cfg.Defaults)
	l := &List[T]{
		ctrl:  ctrl,
		pager: filters.NewPaginator(ctrl),
		cache: cfg.Cache,
		view:  query.NewView(cfg.Cache),
		fetch: cfg.Fetch,
		await: cfg.AwaitTimeout,
	}
	ctrl.OnCommit(func(ev filters.CommitEvent) {
		l.pending = &ev
	})
	return l
}

// AddFilter exposes field in the filter form.
func (l *List[T]) AddFilter(field filters.FieldName) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctrl.AddFilter(field)
}

// RemoveFilter hides field and resets its draft.
func (l *List[T]) RemoveFilter(field filters.FieldName) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctrl.RemoveFilter(field)
}

// ClearAll hides every filter without committing.
func (l *List[T]) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ctrl.ClearAll()
}

// Search applies the submitted drafts of active fields and commits them.
// Drafts of inactive or unknown fields are ignored.
func (l *List[T]) Search(ctx context.Context, drafts map[filters.FieldName]string, sort string, order filters.Order) filters.SearchParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	for field, raw := range drafts {
		l.ctrl.UpdateField(field, raw)
	}
	if sort != "" || order != "" {
		current, _ := l.ctrl.Sort()
		if sort == "" {
			sort = current
		}
		l.ctrl.SetSort(sort, order)
	}
	params := l.ctrl.Commit()
	l.flush(ctx)
	return params
}

// Reset clears every filter and commits the empty search.
func (l *List[T]) Reset(ctx context.Context) filters.SearchParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	params := l.ctrl.Reset()
	l.flush(ctx)
	return params
}

// GoToPage moves to page n when it exists.
func (l *List[T]) GoToPage(ctx context.Context, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.pager.GoToPage(n) {
		return false
	}
	l.flush(ctx)
	return true
}

// State loads the committed parameters when their entry is missing or stale,
// waits up to the await timeout for it to settle and returns a snapshot.
func (l *List[T]) State(ctx context.Context) State[T] {
	l.mu.Lock()
	committed := l.ctrl.Committed()
	key := l.cache.Key(ctx, committed.Values())
	if l.view.Key() != key || l.cache.NeedsLoad(key) {
		l.load(ctx, committed)
	}
	l.mu.Unlock()

	if l.await > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, l.await)
		l.view.Wait(waitCtx)
		cancel()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	result := l.view.Current()
	if result.HasData && !result.Stale {
		l.pager.SetMeta(result.Data.Pagination)
	}
	sort, order := l.ctrl.Sort()
	return State[T]{
		Fields:    l.ctrl.Catalog().Fields(),
		Active:    l.ctrl.Active(),
		Available: l.ctrl.Available(),
		Form:      l.ctrl.Form(),
		Sort:      sort,
		Order:     order,
		Committed: l.ctrl.Committed(),
		Result:    result,
		Controls:  l.pager.Controls(),
	}
}

// Close releases the screen. The view has no subscriptions of its own.
func (l *List[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = nil
}

func (l *List[T]) flush(ctx context.Context) {
	if l.pending == nil {
		return
	}
	ev := *l.pending
	l.pending = nil
	key := l.load(ctx, ev.Params)
	l.cache.Bus().Publish(query.Event{Kind: query.EventCommitted, Resource: l.cache.Resource(), Key: key})
}

func (l *List[T]) load(ctx context.Context, params filters.SearchParams) query.Key {
	values := params.Values()
	fetch := l.fetch
	l.view.Load(ctx, values, func(loadCtx context.Context) (gateway.ListData[T], error) {
		return fetch(loadCtx, params)
	})
	return l.cache.Key(ctx, values)
}
