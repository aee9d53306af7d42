// Package audit keeps the change log of writes made through the console.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Store is the persistence the service needs.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	Window(ctx context.Context, p WindowParams) ([]Entry, error)
}

// ErrIncomplete rejects entries without an action or resource.
var ErrIncomplete = errors.New("audit: entry requires action and resource")

// Service records and lists the change log.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Record appends e.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if s == nil || s.store == nil {
		return errors.New("audit: store not configured")
	}
	if strings.TrimSpace(e.Action) == "" || strings.TrimSpace(e.Resource) == "" {
		return ErrIncomplete
	}
	return s.store.Insert(ctx, e)
}

// Timeline returns one page of the change log, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, fmt.Errorf("audit: store not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	params := windowParams(filters)
	params.Offset = int32((page - 1) * pageSize)
	params.Limit = pgtype.Int4{Int32: int32(pageSize + 1), Valid: true}

	rows, err := s.store.Window(ctx, params)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every entry matching filters without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("audit: store not configured")
	}
	return s.store.Window(ctx, windowParams(filters))
}

func windowParams(filters TimelineFilters) WindowParams {
	return WindowParams{
		FromAt:   toPgTime(filters.From),
		ToAt:     toPgTime(filters.To),
		Actor:    optionalText(filters.Actor),
		Resource: optionalText(filters.Resource),
		Action:   optionalText(filters.Action),
	}
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
