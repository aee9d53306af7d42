package gateway

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const listSchema = `{
  "type": "object",
  "required": ["items", "pagination"],
  "properties": {
    "items": {"type": "array", "items": {"type": "object"}},
    "pagination": {
      "type": "object",
      "required": ["currentPage", "totalPages", "hasNext", "hasPrevious"],
      "properties": {
        "currentPage": {"type": "integer", "minimum": 1},
        "totalPages": {"type": "integer", "minimum": 0},
        "hasNext": {"type": "boolean"},
        "hasPrevious": {"type": "boolean"}
      }
    }
  }
}`

// Contract checks list payloads before they are decoded.
type Contract struct {
	schema *gojsonschema.Schema
}

// NewListContract compiles the schema of paginated list data.
func NewListContract() (*Contract, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(listSchema))
	if err != nil {
		return nil, fmt.Errorf("gateway: compile list schema: %w", err)
	}
	return &Contract{schema: schema}, nil
}

// Validate returns a KindContract error describing every violation in raw.
func (c *Contract) Validate(op string, raw []byte) error {
	if c == nil || c.schema == nil {
		return nil
	}
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &Error{Kind: KindContract, Op: op, Err: err}
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return &Error{Kind: KindContract, Op: op, Message: strings.Join(violations, "; ")}
}
