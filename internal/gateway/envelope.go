package gateway

import (
	"encoding/json"

	"github.com/atelier-admin/atelier/internal/filters"
)

// Envelope wraps every backend answer.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ListData is the data of a paginated list answer.
type ListData[T any] struct {
	Items      []T              `json:"items"`
	Pagination filters.PageMeta `json:"pagination"`
}
