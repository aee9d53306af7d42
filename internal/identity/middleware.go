package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/query"
	"github.com/atelier-admin/atelier/internal/shared"
)

type tokenSourceKey struct{}

// ContextWithTokens stores the token source of the signed-in session.
func ContextWithTokens(ctx context.Context, ts gateway.TokenSource) context.Context {
	return context.WithValue(ctx, tokenSourceKey{}, ts)
}

// TokensFromContext returns the token source installed by RequireLogin, or nil.
func TokensFromContext(ctx context.Context) gateway.TokenSource {
	ts, _ := ctx.Value(tokenSourceKey{}).(gateway.TokenSource)
	return ts
}

// RequireLogin redirects anonymous sessions to the login page. For signed-in
// sessions it refreshes the access token up front and installs the session's
// token source and cache scope in the request context. A failed refresh ends
// the session.
func RequireLogin(provider *Provider, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			if _, err := provider.Token(r.Context(), sess.ID); err != nil {
				if errors.Is(err, ErrRefreshFailed) || errors.Is(err, gateway.ErrNoAccessToken) {
					if err := provider.SignOut(r.Context(), sess.ID); err != nil {
						logger.Warn("drop session tokens", slog.Any("error", err))
					}
					sess.SetUser("")
					sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "Your session has expired. Please sign in again."})
					http.Redirect(w, r, LoginPath, http.StatusSeeOther)
					return
				}
				logger.Error("load session tokens", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			ctx := ContextWithTokens(r.Context(), provider.ForSession(sess.ID))
			ctx = query.WithScope(ctx, sess.User())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
