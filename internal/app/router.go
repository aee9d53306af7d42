package app

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atelier-admin/atelier/internal/audit"
	"github.com/atelier-admin/atelier/internal/identity"
	"github.com/atelier-admin/atelier/internal/observability"
	"github.com/atelier-admin/atelier/internal/platform/httpx"
	"github.com/atelier-admin/atelier/internal/records/boards"
	"github.com/atelier-admin/atelier/internal/records/ingredients"
	"github.com/atelier-admin/atelier/internal/records/menus"
	"github.com/atelier-admin/atelier/internal/screens"
	"github.com/atelier-admin/atelier/internal/shared"
	"github.com/atelier-admin/atelier/jobs"
	"github.com/atelier-admin/atelier/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Pages          *screens.Pages
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	IdentityHandler    *identity.Handler
	Provider           *identity.Provider
	BoardsHandler      *boards.Handler
	IngredientsHandler *ingredients.Handler
	MenusHandler       *menus.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler

	// Ready reports whether dependencies answer; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Ready(ctx); err != nil {
				params.Logger.Warn("readiness check failed", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Not Ready", "a dependency did not answer")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Route("/auth", params.IdentityHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(identity.RequireLogin(params.Provider, params.Logger))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, boards.BasePath, http.StatusSeeOther)
		})
		r.Route(boards.BasePath, params.BoardsHandler.MountRoutes)
		r.Route(ingredients.BasePath, params.IngredientsHandler.MountRoutes)
		r.Route(menus.BasePath, params.MenusHandler.MountRoutes)
		if params.AuditHandler != nil {
			r.Route(audit.BasePath, params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		params.Pages.Render(w, r, http.StatusNotFound, "pages/error.html", "Not found", errorPage{
			Status:  http.StatusNotFound,
			Message: "The page you asked for does not exist.",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		params.Pages.Render(w, r, http.StatusMethodNotAllowed, "pages/error.html", "Not allowed", errorPage{
			Status:  http.StatusMethodNotAllowed,
			Message: "This address does not accept that request.",
		})
	})

	return r
}

type errorPage struct {
	Status  int
	Message string
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
