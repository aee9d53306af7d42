// Package filters implements the draft/commit filter form used by list screens
// together with the page navigation that feeds the same committed parameters.
package filters

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Kind is the input kind of a filter field.
type Kind string

const (
	KindText   Kind = "text"
	KindSelect Kind = "select"
	KindDate   Kind = "date"
	KindNumber Kind = "number"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindSelect, KindDate, KindNumber:
		return true
	}
	return false
}

// FieldName identifies a filter field. Screens declare their names as constants.
type FieldName string

// Option is a single choice of a select field.
type Option struct {
	Value string `validate:"required"`
	Label string `validate:"required"`
}

// FieldConfig describes one filterable field of a screen.
type FieldConfig struct {
	Field       FieldName `validate:"required"`
	Label       string    `validate:"required"`
	Kind        Kind      `validate:"required,oneof=text select date number"`
	Options     []Option  `validate:"dive"`
	Placeholder string
}

var (
	// ErrEmptyCatalog is returned when a catalog has no fields.
	ErrEmptyCatalog = errors.New("filters: catalog has no fields")
	// ErrDuplicateField is returned when two configs share a field name.
	ErrDuplicateField = errors.New("filters: duplicate field")
	// ErrOptions is returned when options are missing on a select field or present elsewhere.
	ErrOptions = errors.New("filters: options are required for select fields only")
)

var configValidator = validator.New()

// Catalog is the immutable set of fields a screen can filter on.
type Catalog struct {
	fields []FieldConfig
	index  map[FieldName]int
}

// NewCatalog validates the configs and builds a catalog preserving their order.
func NewCatalog(configs ...FieldConfig) (*Catalog, error) {
	if len(configs) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		fields: make([]FieldConfig, 0, len(configs)),
		index:  make(map[FieldName]int, len(configs)),
	}
	for _, cfg := range configs {
		if err := configValidator.Struct(cfg); err != nil {
			return nil, fmt.Errorf("filters: field %q: %w", cfg.Field, err)
		}
		if _, ok := c.index[cfg.Field]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, cfg.Field)
		}
		hasOptions := len(cfg.Options) > 0
		if hasOptions != (cfg.Kind == KindSelect) {
			return nil, fmt.Errorf("%w: %s", ErrOptions, cfg.Field)
		}
		cfg.Options = append([]Option(nil), cfg.Options...)
		c.index[cfg.Field] = len(c.fields)
		c.fields = append(c.fields, cfg)
	}
	return c, nil
}

// MustCatalog is NewCatalog for package-level screen declarations.
func MustCatalog(configs ...FieldConfig) *Catalog {
	c, err := NewCatalog(configs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the config of field.
func (c *Catalog) Lookup(field FieldName) (FieldConfig, bool) {
	if c == nil {
		return FieldConfig{}, false
	}
	i, ok := c.index[field]
	if !ok {
		return FieldConfig{}, false
	}
	return c.fields[i], true
}

// Has reports whether field is configured.
func (c *Catalog) Has(field FieldName) bool {
	_, ok := c.Lookup(field)
	return ok
}

// Fields returns a copy of the configs in declaration order.
func (c *Catalog) Fields() []FieldConfig {
	if c == nil {
		return nil
	}
	return append([]FieldConfig(nil), c.fields...)
}

// Len returns the number of configured fields.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.fields)
}
