package menus

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/identity"
	"github.com/atelier-admin/atelier/internal/query"
	"github.com/atelier-admin/atelier/internal/screens"
	"github.com/atelier-admin/atelier/internal/shared"
)

// Service maps menu operations onto the backend and the query caches.
type Service struct {
	backend  *gateway.Client
	queries  *query.Client
	all      *query.Cache[[]Menu]
	details  *query.Cache[Menu]
	validate *validator.Validate
}

// NewService registers the menu caches on queries.
func NewService(backend *gateway.Client, queries *query.Client) *Service {
	return &Service{
		backend:  backend,
		queries:  queries,
		all:      query.Register[[]Menu](queries, Resource),
		details:  query.Register[Menu](queries, detailResource),
		validate: screens.NewValidator(),
	}
}

// List returns every menu. The backend does not paginate menus.
func (s *Service) List(ctx context.Context) query.Result[[]Menu] {
	return s.all.Await(ctx, nil, s.Load)
}

// Warm loads the menu list into the caches.
func (s *Service) Warm(ctx context.Context) error {
	return s.List(ctx).Settled()
}

// Load fetches the menus straight from the backend.
func (s *Service) Load(ctx context.Context) ([]Menu, error) {
	items, err := gateway.Get[[]Menu](ctx, s.client(ctx), apiPath)
	if items == nil && err == nil {
		items = []Menu{}
	}
	return items, err
}

// Get returns the cached menu id, loading it when needed.
func (s *Service) Get(ctx context.Context, id int) query.Result[Menu] {
	return s.details.Await(ctx, query.DetailParams(strconv.Itoa(id)), func(loadCtx context.Context) (Menu, error) {
		return gateway.Get[Menu](loadCtx, s.client(loadCtx), itemPath(id))
	})
}

// Create validates in and posts it.
func (s *Service) Create(ctx context.Context, in Input) (Menu, error) {
	var created Menu
	if err := s.validate.Struct(in); err != nil {
		return created, err
	}
	err := s.queries.Mutate(ctx, s.mutation(ctx, "create", ""), func(ctx context.Context) error {
		return s.client(ctx).Create(ctx, apiPath, in, &created)
	})
	return created, err
}

// Update validates in and replaces menu id. A menu cannot be its own parent.
func (s *Service) Update(ctx context.Context, id int, in Input) error {
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	if in.ParentID != nil && *in.ParentID == id {
		return ErrOwnParent
	}
	return s.queries.Mutate(ctx, s.mutation(ctx, "update", strconv.Itoa(id)), func(ctx context.Context) error {
		return s.client(ctx).Update(ctx, itemPath(id), in, nil)
	})
}

// Delete removes menu id.
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
