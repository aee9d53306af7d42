package filters

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Order is the sort direction understood by the backend.
type Order string

const (
	OrderAsc  Order = "ASC"
	OrderDesc Order = "DESC"
)

// ParseOrder accepts asc/desc in any case and returns "" for anything else.
func ParseOrder(s string) Order {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(OrderAsc):
		return OrderAsc
	case string(OrderDesc):
		return OrderDesc
	}
	return ""
}

// Defaults seeds the committed parameters of a freshly mounted screen.
type Defaults struct {
	Limit int
	Sort  string
	Order Order
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// SearchParams is the committed snapshot that drives fetching.
type SearchParams struct {
	Filters []FilterValue
	Page    int
	Limit   int
	Sort    string
	Order   Order
}

// FilterValue is one committed field value.
type FilterValue struct {
	Field FieldName
	Value Value
}

// Params returns the parameters a freshly mounted screen commits first.
func (d Defaults) Params() SearchParams {
	limit := d.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return SearchParams{Page: DefaultPage, Limit: limit, Sort: d.Sort, Order: d.Order}
}

// Get returns the committed value of field, if any.
func (p SearchParams) Get(field FieldName) (Value, bool) {
	for _, fv := range p.Filters {
		if fv.Field == field {
			return fv.Value, true
		}
	}
	return Value{}, false
}

// WithPage returns a copy of p on page n.
func (p SearchParams) WithPage(n int) SearchParams {
	out := p
	out.Filters = append([]FilterValue(nil), p.Filters...)
	out.Page = n
	return out
}

// Values encodes p as query parameters. Kind-default filter values are left out
// since the backend treats them as "no filter". Values go out in NFC, the form
// cache keys are built from.
func (p SearchParams) Values() url.Values {
	v := url.Values{}
	for _, fv := range p.Filters {
		if fv.Value.IsZero() {
			continue
		}
		v.Set(string(fv.Field), norm.NFC.String(fv.Value.String()))
	}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("limit", strconv.Itoa(p.Limit))
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.Order != "" {
		v.Set("order", string(p.Order))
	}
	return v
}
