package ingredients

import "github.com/atelier-admin/atelier/internal/filters"

// Resource names the ingredient caches and audit entries.
const Resource = "ingredients"

const (
	apiPath        = "/ingredient"
	detailResource = Resource + "/detail"
)

// Ingredient is a cosmetic raw material.
type Ingredient struct {
	ID          int    `json:"id"`
	NameEnglish string `json:"nameEnglish"`
	NameKorean  string `json:"nameKorean"`
	CasNo       string `json:"casNo"`
	Func        string `json:"func"`
}

// Input carries the editable fields of an ingredient. Create and update share
// the same payload.
type Input struct {
	NameEnglish string `json:"nameEnglish" form:"nameEnglish" validate:"required,max=200"`
	NameKorean  string `json:"nameKorean" form:"nameKorean" validate:"required,max=200"`
	CasNo       string `json:"casNo" form:"casNo" validate:"omitempty,max=32"`
	Func        string `json:"func" form:"func" validate:"omitempty,max=200"`
}

// FieldKeyword searches every name column at once.
const FieldKeyword filters.FieldName = "keyword"

// Catalog is the filter catalog of the ingredient list.
var Catalog = filters.MustCatalog(
	filters.FieldConfig{Field: FieldKeyword, Label: "Keyword", Kind: filters.KindText, Placeholder: "Name or CAS number..."},
)

// Defaults are the committed parameters of a fresh ingredient list.
var Defaults = filters.Defaults{Limit: 10}
