package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atelier-admin/atelier/internal/shared"
	"github.com/atelier-admin/atelier/internal/view"
)

// LoginPath is where anonymous sessions are sent.
const LoginPath = "/auth/login"

// Handler wires the login and logout endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	provider  *Provider
	templates *view.Engine
	sessions  *shared.SessionManager
	csrf      *shared.CSRFManager
	validator *validator.Validate
	onSignIn  func(ctx context.Context, sessionID string)
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, provider *Provider, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		provider:  provider,
		templates: templates,
		sessions:  sessions,
		csrf:      csrf,
		validator: validator.New(),
	}
}

// OnSignIn registers fn to run after a session signs in.
func (h *Handler) OnSignIn(fn func(ctx context.Context, sessionID string)) {
	h.onSignIn = fn
}

// MountRoutes registers auth routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}
	if sess == nil {
		h.logger.Error("session missing during login")
		errs["general"] = "Session unavailable, please retry."
	}

	if len(errs) == 0 {
		tokens, err := h.service.Login(r.Context(), form.Email, form.Password)
		switch {
		case errors.Is(err, shared.ErrInvalidCredentials):
			errs["general"] = "Invalid email or password."
		case err != nil:
			h.logger.Warn("login backend call failed", slog.Any("error", err))
			errs["general"] = "The backend is unavailable, please retry."
		default:
			if err := h.sessions.Renew(r.Context(), sess); err != nil {
				h.logger.Error("renew session", slog.Any("error", err))
				errs["general"] = "Session unavailable, please retry."
				break
			}
			h.csrf.Rotate(sess)
			if err := h.provider.SignIn(r.Context(), sess.ID, tokens); err != nil {
				h.logger.Error("store session tokens", slog.Any("error", err))
				errs["general"] = "Session unavailable, please retry."
				break
			}
			sess.SetUser(form.Email)
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})
			if h.onSignIn != nil {
				h.onSignIn(r.Context(), sess.ID)
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	form.Password = ""
	h.render(w, r, http.StatusBadRequest, loginPageData{Form: form, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.provider.SignOut(r.Context(), sess.ID); err != nil {
			h.logger.Warn("drop session tokens", slog.Any("error", err))
		}
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}
