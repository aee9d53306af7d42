package filters

// ActiveFilter is a catalog field currently exposed for editing.
type ActiveFilter struct {
	Field FieldName
	Label string
	Kind  Kind
}

// CommitKind tells a content commit apart from a page change.
type CommitKind int

const (
	CommitSearch CommitKind = iota + 1
	CommitPage
)

func (k CommitKind) String() string {
	switch k {
	case CommitSearch:
		return "search"
	case CommitPage:
		return "page"
	}
	return "unknown"
}

// CommitEvent is published whenever the committed parameters are replaced.
type CommitEvent struct {
	Kind   CommitKind
	Params SearchParams
}

// Controller owns the draft form, the active filter set and the committed
// parameters of one screen. It is not safe for concurrent use.
//
// Invalid targets are ignored: the mutating methods report false instead of
// returning errors.
type Controller struct {
	catalog   *Catalog
	form      FormState
	active    []ActiveFilter
	sort      string
	order     Order
	committed SearchParams
	listeners []func(CommitEvent)
}

// NewController mounts a controller over catalog with the given defaults.
func NewController(catalog *Catalog, defaults Defaults) *Controller {
	return &Controller{
		catalog:   catalog,
		form:      newFormState(catalog),
		sort:      defaults.Sort,
		order:     defaults.Order,
		committed: defaults.Params(),
	}
}

// Catalog returns the field catalog.
func (c *Controller) Catalog() *Catalog { return c.catalog }

// OnCommit registers fn to receive every commit and page change.
func (c *Controller) OnCommit(fn func(CommitEvent)) {
	if fn != nil {
		c.listeners = append(c.listeners, fn)
	}
}

// AddFilter activates field.
func (c *Controller) AddFilter(field FieldName) bool {
	cfg, ok := c.catalog.Lookup(field)
	if !ok || c.IsActive(field) {
		return false
	}
	c.active = append(c.active, ActiveFilter{Field: cfg.Field, Label: cfg.Label, Kind: cfg.Kind})
	return true
}

// RemoveFilter deactivates field and resets its draft value.
func (c *Controller) RemoveFilter(field FieldName) bool {
	idx := c.activeIndex(field)
	if idx < 0 {
		return false
	}
	kind := c.active[idx].Kind
	c.active = append(c.active[:idx:idx], c.active[idx+1:]...)
	c.form.set(field, ZeroValue(kind))
	return true
}

// UpdateField overwrites the draft value of an active field.
func (c *Controller) UpdateField(field FieldName, raw string) bool {
	idx := c.activeIndex(field)
	if idx < 0 {
		return false
	}
	c.form.set(field, Coerce(c.active[idx].Kind, raw))
	return true
}

// SetSort updates the draft sort column and direction.
func (c *Controller) SetSort(sort string, order Order) {
	c.sort = sort
	if order != "" {
		c.order = order
	}
}

// ClearAll deactivates every filter and resets all draft values.
func (c *Controller) ClearAll() {
	c.active = nil
	c.form = newFormState(c.catalog)
}

// Commit promotes the drafts of the active fields into new committed
// parameters on the first page.
func (c *Controller) Commit() SearchParams {
	next := SearchParams{
		Filters: make([]FilterValue, 0, len(c.active)),
		Page:    DefaultPage,
		Limit:   c.committed.Limit,
		Sort:    c.sort,
		Order:   c.order,
	}
	for _, f := range c.active {
		next.Filters = append(next.Filters, FilterValue{Field: f.Field, Value: c.form.Get(f.Field)})
	}
	c.publish(CommitSearch, next)
	return next
}

// Reset clears every filter and commits.
func (c *Controller) Reset() SearchParams {
	c.ClearAll()
	return c.Commit()
}

// Committed returns the parameters currently driving the query.
func (c *Controller) Committed() SearchParams {
	return c.committed.WithPage(c.committed.Page)
}

// Form returns a copy of the draft form.
func (c *Controller) Form() FormState {
	return c.form.clone()
}

// Draft returns the draft value of field.
func (c *Controller) Draft(field FieldName) Value {
	return c.form.Get(field)
}

// Sort returns the draft sort column and direction.
func (c *Controller) Sort() (string, Order) {
	return c.sort, c.order
}

// Active returns the active filters in activation order.
func (c *Controller) Active() []ActiveFilter {
	return append([]ActiveFilter(nil), c.active...)
}

// IsActive reports whether field is active.
func (c *Controller) IsActive(field FieldName) bool {
	return c.activeIndex(field) >= 0
}

// Available returns the configured fields that can still be added.
func (c *Controller) Available() []FieldConfig {
	var out []FieldConfig
	for _, cfg := range c.catalog.fields {
		if !c.IsActive(cfg.Field) {
			out = append(out, cfg)
		}
	}
	return out
}

func (c *Controller) activeIndex(field FieldName) int {
	for i, f := range c.active {
		if f.Field == field {
			return i
		}
	}
	return -1
}

func (c *Controller) publish(kind CommitKind, params SearchParams) {
	c.committed = params
	event := CommitEvent{Kind: kind, Params: params.WithPage(params.Page)}
	for _, fn := range c.listeners {
		fn(event)
	}
}
