package screens

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/atelier-admin/atelier/internal/filters"
	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/identity"
)

// FilterInput is one active filter rendered as a form control.
type FilterInput struct {
	Field       string
	Label       string
	Kind        string
	Value       string
	Placeholder string
	Options     []filters.Option
}

// Row is one table row; Link points at the record detail.
type Row struct {
	Link  string
	Cells []string
}

// ListPage is the template model of every list screen.
type ListPage struct {
	Heading     string
	BasePath    string
	NewPath     string
	Filters     []FilterInput
	Available   []filters.FieldConfig
	SortOptions []filters.Option
	Sort        string
	Order       string
	Columns     []string
	Rows        []Row
	Pagination  filters.Controls
	Paginated   bool
	Searchable  bool
	Loading     bool
	Refreshing  bool
	Error       string
}

// ListOptions names the parts of a list page that do not come from state.
type ListOptions struct {
	Heading     string
	BasePath    string
	NewPath     string
	Columns     []string
	SortOptions []filters.Option
}

// NewListPage renders st into a template model.
func NewListPage[T any](st State[T], opts ListOptions, row func(T) Row) ListPage {
	page := ListPage{
		Heading:     opts.Heading,
		BasePath:    opts.BasePath,
		NewPath:     opts.NewPath,
		Available:   st.Available,
		SortOptions: opts.SortOptions,
		Sort:        st.Sort,
		Order:       string(st.Order),
		Columns:     opts.Columns,
		Pagination:  st.Controls,
		Paginated:   true,
		Searchable:  true,
	}
	for _, active := range st.Active {
		cfg, _ := lookup(st.Fields, active.Field)
		page.Filters = append(page.Filters, FilterInput{
			Field:       string(active.Field),
			Label:       active.Label,
			Kind:        string(active.Kind),
			Value:       st.Form.Get(active.Field).Input(),
			Placeholder: cfg.Placeholder,
			Options:     cfg.Options,
		})
	}
	res := st.Result
	switch {
	case res.Failed():
		page.Error = ErrorMessage(res.Err)
	case res.Loading() && !res.HasData:
		page.Loading = true
	case res.Loading():
		page.Refreshing = true
	}
	if res.HasData {
		for _, item := range res.Data.Items {
			page.Rows = append(page.Rows, row(item))
		}
	}
	return page
}

// ErrorMessage turns a load failure into text fit for operators.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, identity.ErrRefreshFailed), gateway.IsAuth(err):
		return "Your session has expired. Please sign in again."
	case gateway.IsNotFound(err):
		return "The record does not exist any more."
	case gateway.KindOf(err) == gateway.KindRejected:
		var gerr *gateway.Error
		if errors.As(err, &gerr) && gerr.Message != "" {
			return gerr.Message
		}
		return "The backend rejected the request."
	}
	return "Could not load data from the backend. Try again."
}

// Drafts collects the submitted values of catalog fields from form.
func Drafts(catalog *filters.Catalog, form url.Values) map[filters.FieldName]string {
	drafts := make(map[filters.FieldName]string)
	for _, cfg := range catalog.Fields() {
		if vs, ok := form[string(cfg.Field)]; ok && len(vs) > 0 {
			drafts[cfg.Field] = vs[0]
		}
	}
	return drafts
}

// PageNumber parses the requested page; zero means invalid.
func PageNumber(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

func lookup(fields []filters.FieldConfig, name filters.FieldName) (filters.FieldConfig, bool) {
	for _, f := range fields {
		if f.Field == name {
			return f, true
		}
	}
	return filters.FieldConfig{}, false
}
