package screens

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-admin/atelier/internal/filters"
	"github.com/atelier-admin/atelier/internal/shared"
)

// Renderer writes a list page.
type Renderer func(w http.ResponseWriter, r *http.Request, page ListPage)

// ListScreen serves the list endpoints of one resource. Every POST ends in a
// redirect back to the list so reloads never resubmit.
type ListScreen[T any] struct {
	Name    string
	Store   *Store
	Config  ListConfig[T]
	Options ListOptions
	Row     func(T) Row
	Render  Renderer
	Logger  *slog.Logger
}

// MountRoutes registers the list endpoints on r.
func (s *ListScreen[T]) MountRoutes(r chi.Router) {
	r.Get("/", s.show)
	r.Post("/filters/add", s.addFilter)
	r.Post("/filters/remove", s.removeFilter)
	r.Post("/filters/clear", s.clearFilters)
	r.Post("/search", s.search)
	r.Post("/reset", s.reset)
	r.Post("/page", s.goToPage)
}

func (s *ListScreen[T]) screen(r *http.Request) *List[T] {
	session := ""
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		session = sess.ID
	}
	return Mount(s.Store, session, s.Name, func() *List[T] {
		return NewList(s.Config)
	})
}

func (s *ListScreen[T]) show(w http.ResponseWriter, r *http.Request) {
	st := s.screen(r).State(r.Context())
	if st.Result.Failed() {
		s.logger().Warn("list load failed", slog.String("screen", s.Name), slog.Any("error", st.Result.Err))
	}
	s.Render(w, r, NewListPage(st, s.Options, s.Row))
}

func (s *ListScreen[T]) addFilter(w http.ResponseWriter, r *http.Request) {
	if !s.parse(w, r) {
		return
	}
	s.screen(r).AddFilter(filters.FieldName(r.PostFormValue("field")))
	s.back(w, r)
}

func (s *ListScreen[T]) removeFilter(w http.ResponseWriter, r *http.Request) {
	if !s.parse(w, r) {
		return
	}
	s.screen(r).RemoveFilter(filters.FieldName(r.PostFormValue("field")))
	s.back(w, r)
}

func (s *ListScreen[T]) clearFilters(w http.ResponseWriter, r *http.Request) {
	s.screen(r).ClearAll()
	s.back(w, r)
}

func (s *ListScreen[T]) search(w http.ResponseWriter, r *http.Request) {
	if !s.parse(w, r) {
		return
	}
	drafts := Drafts(s.Config.Catalog, r.PostForm)
	order := filters.Order("")
	if raw := r.PostFormValue("order"); raw != "" {
		order = filters.ParseOrder(raw)
	}
	s.screen(r).Search(r.Context(), drafts, r.PostFormValue("sort"), order)
	s.back(w, r)
}

func (s *ListScreen[T]) reset(w http.ResponseWriter, r *http.Request) {
	s.screen(r).Reset(r.Context())
	s.back(w, r)
}

func (s *ListScreen[T]) goToPage(w http.ResponseWriter, r *http.Request) {
	if !s.parse(w, r) {
		return
	}
	s.screen(r).GoToPage(r.Context(), PageNumber(r.PostFormValue("page")))
	s.back(w, r)
}

func (s *ListScreen[T]) parse(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *ListScreen[T]) back(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.Options.BasePath, http.StatusSeeOther)
}

func (s *ListScreen[T]) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
