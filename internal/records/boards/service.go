package boards

import (
	"context"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/atelier-admin/atelier/internal/filters"
	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/identity"
	"github.com/atelier-admin/atelier/internal/query"
	"github.com/atelier-admin/atelier/internal/screens"
	"github.com/atelier-admin/atelier/internal/shared"
)

// Service maps board operations onto the backend and the query caches.
type Service struct {
	backend  *gateway.Client
	queries  *query.Client
	lists    *query.Cache[gateway.ListData[Board]]
	details  *query.Cache[Board]
	validate *validator.Validate
}

// NewService registers the board caches on queries.
func NewService(backend *gateway.Client, queries *query.Client) *Service {
	return &Service{
		backend:  backend,
		queries:  queries,
		lists:    query.Register[gateway.ListData[Board]](queries, Resource),
		details:  query.Register[Board](queries, detailResource),
		validate: screens.NewValidator(),
	}
}

// Lists exposes the list cache to screens.
func (s *Service) Lists() *query.Cache[gateway.ListData[Board]] { return s.lists }

// List fetches one page straight from the backend.
func (s *Service) List(ctx context.Context, params filters.SearchParams) (gateway.ListData[Board], error) {
	return gateway.List[Board](ctx, s.client(ctx), apiPath, params.Values())
}

// Warm loads the first page of a fresh list screen into the caches.
func (s *Service) Warm(ctx context.Context) error {
	params := Defaults.Params()
	return s.lists.Await(ctx, params.Values(), func(loadCtx context.Context) (gateway.ListData[Board], error) {
		return s.List(loadCtx, params)
	}).Settled()
}

// Get returns the cached detail of id, loading it when needed.
func (s *Service) Get(ctx context.Context, id int) query.Result[Board] {
	return s.details.Await(ctx, detailParams(id), func(loadCtx context.Context) (Board, error) {
		return gateway.Get[Board](loadCtx, s.client(loadCtx), itemPath(id))
	})
}

// Create validates in and posts it.
func (s *Service) Create(ctx context.Context, in Input) (Board, error) {
	var created Board
	if err := s.validate.Struct(in); err != nil {
		return created, err
	}
	err := s.queries.Mutate(ctx, s.mutation(ctx, "create", ""), func(ctx context.Context) error {
		return s.client(ctx).Create(ctx, apiPath, in, &created)
	})
	return created, err
}

// Update validates in and replaces post id.
func (s *Service) Update(ctx context.Context, id int, in Input) error {
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	return s.queries.Mutate(ctx, s.mutation(ctx, "update", strconv.Itoa(id)), func(ctx context.Context) error {
		return s.client(ctx).Update(ctx, itemPath(id), updateRequest{ID: id, Input: in}, nil)
	})
}

// Delete removes post id.
func (s *Service) Delete(ctx context.Context, id int) error {
	return s.queries.Mutate(ctx, s.mutation(ctx, "delete", strconv.Itoa(id)), func(ctx context.Context) error {
		return s.client(ctx).Delete(ctx, itemPath(id))
	})
}

func (s *Service) client(ctx context.Context) *gateway.Client {
	return s.backend.WithTokens(identity.TokensFromContext(ctx))
}

func (s *Service) mutation(ctx context.Context, action, id string) query.Mutation {
	m := query.Mutation{Resource: Resource, Action: action, ID: id}
	if sess := shared.SessionFromContext(ctx); sess != nil {
		m.Actor = sess.User()
	}
	return m
}

func itemPath(id int) string { return apiPath + "/" + strconv.Itoa(id) }

func detailParams(id int) url.Values { return query.DetailParams(strconv.Itoa(id)) }
