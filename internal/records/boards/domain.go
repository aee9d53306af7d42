package boards

import (
	"github.com/atelier-admin/atelier/internal/filters"
)

// Resource names the board caches and audit entries.
const Resource = "boards"

const (
	apiPath        = "/board"
	detailResource = Resource + "/detail"
)

// Board is a bulletin post.
type Board struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreateDtm string `json:"createDtm,omitempty"`
}

// Input carries the editable fields of a post.
type Input struct {
	Title   string `json:"title" form:"title" validate:"required,max=200"`
	Content string `json:"content" form:"content" validate:"required,max=10000"`
}

type updateRequest struct {
	ID int `json:"id"`
	Input
}

// Filter fields of the board list.
const (
	FieldTitle    filters.FieldName = "title"
	FieldContent  filters.FieldName = "content"
	FieldDateFrom filters.FieldName = "dateFrom"
	FieldDateTo   filters.FieldName = "dateTo"
)

// Catalog is the filter catalog of the board list.
var Catalog = filters.MustCatalog(
	filters.FieldConfig{Field: FieldTitle, Label: "Title", Kind: filters.KindText, Placeholder: "Enter a title..."},
	filters.FieldConfig{Field: FieldContent, Label: "Content", Kind: filters.KindText, Placeholder: "Enter content..."},
	filters.FieldConfig{Field: FieldDateFrom, Label: "From", Kind: filters.KindDate},
	filters.FieldConfig{Field: FieldDateTo, Label: "To", Kind: filters.KindDate},
)

// Defaults are the committed parameters of a fresh board list.
var Defaults = filters.Defaults{Limit: 3, Order: filters.OrderDesc}

var sortOptions = []filters.Option{
	{Value: "createDtm", Label: "Created"},
	{Value: "title", Label: "Title"},
}
