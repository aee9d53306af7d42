package filters

// PageMeta is the pagination block the backend returns with every list.
type PageMeta struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// Controls is what a pagination widget needs to render itself.
type Controls struct {
	Current     int
	Total       int
	Pages       []int
	HasPrevious bool
	HasNext     bool
}

const pageWindow = 5

// Paginator turns page requests into committed parameters of a controller.
type Paginator struct {
	ctrl *Controller
	meta PageMeta
}

// NewPaginator binds a paginator to ctrl. A content commit forgets the
// recorded metadata: it described the previous query, so page changes wait for
// the new query's first answer.
func NewPaginator(ctrl *Controller) *Paginator {
	p := &Paginator{ctrl: ctrl}
	ctrl.OnCommit(func(ev CommitEvent) {
		if ev.Kind == CommitSearch {
			p.meta = PageMeta{}
		}
	})
	return p
}

// SetMeta records the metadata of the latest list response.
func (p *Paginator) SetMeta(meta PageMeta) {
	p.meta = meta
}

// Meta returns the recorded metadata.
func (p *Paginator) Meta() PageMeta {
	return p.meta
}

// GoToPage commits page n keeping every filter value. Pages outside
// [1, TotalPages] are ignored.
func (p *Paginator) GoToPage(n int) bool {
	if n < 1 || n > p.meta.TotalPages {
		return false
	}
	p.ctrl.publish(CommitPage, p.ctrl.committed.WithPage(n))
	return true
}

// Controls computes the widget state around the current page.
func (p *Paginator) Controls() Controls {
	current := p.meta.CurrentPage
	if current < 1 {
		current = p.ctrl.committed.Page
	}
	c := Controls{
		Current:     current,
		Total:       p.meta.TotalPages,
		HasPrevious: p.meta.HasPrevious,
		HasNext:     p.meta.HasNext,
	}
	if c.Total <= 0 {
		return c
	}
	start := current - pageWindow/2
	if start < 1 {
		start = 1
	}
	end := start + pageWindow - 1
	if end > c.Total {
		end = c.Total
		start = end - pageWindow + 1
		if start < 1 {
			start = 1
		}
	}
	for i := start; i <= end; i++ {
		c.Pages = append(c.Pages, i)
	}
	return c
}
