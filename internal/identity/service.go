// Package identity signs operators in against the backend's /auth endpoints
// and keeps their bearer tokens fresh for the gateway.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/shared"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"

	// fallbackLifetime applies to access tokens without a readable exp claim.
	fallbackLifetime = 15 * time.Minute
)

// Tokens is the credential pair of one signed-in session.
type Tokens struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
	// Principal is the signed-in user; cached reads are scoped to it.
	Principal string
	// Error carries a session-level marker such as RefreshAccessTokenError.
	Error string
}

// Backend is the unauthenticated slice of the gateway used here.
type Backend interface {
	PostJSON(ctx context.Context, path string, body, out any) error
}

// Service performs login and refresh calls.
type Service struct {
	backend Backend
	parser  *jwt.Parser
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(backend Backend) *Service {
	return &Service{backend: backend, parser: jwt.NewParser(), now: time.Now}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Data         *tokenResponse `json:"data,omitempty"`
}

func (r tokenResponse) unwrap() tokenResponse {
	if r.AccessToken == "" && r.Data != nil {
		return *r.Data
	}
	return r
}

// Login exchanges credentials for tokens. Rejections by the backend come back
// as shared.ErrInvalidCredentials; transport failures are returned as is.
func (s *Service) Login(ctx context.Context, email, password string) (Tokens, error) {
	var resp tokenResponse
	err := s.backend.PostJSON(ctx, loginPath, loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		switch gateway.KindOf(err) {
		case gateway.KindAuth, gateway.KindRejected, gateway.KindNotFound:
			return Tokens{}, fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
		}
		return Tokens{}, err
	}
	resp = resp.unwrap()
	if resp.AccessToken == "" {
		return Tokens{}, shared.ErrInvalidCredentials
	}
	return Tokens{
		Access:    resp.AccessToken,
		Refresh:   resp.RefreshToken,
		ExpiresAt: s.ExpiresAt(resp.AccessToken),
		Principal: email,
	}, nil
}

// ErrNoRefreshToken is returned when a session has nothing to refresh with.
var ErrNoRefreshToken = errors.New("identity: no refresh token")

// Refresh obtains a new access token. The previous refresh token is kept when
// the backend does not rotate it.
func (s *Service) Refresh(ctx context.Context, current Tokens) (Tokens, error) {
	if current.Refresh == "" {
		return Tokens{}, ErrNoRefreshToken
	}
	var resp tokenResponse
	if err := s.backend.PostJSON(ctx, refreshPath, refreshRequest{RefreshToken: current.Refresh}, &resp); err != nil {
		return Tokens{}, fmt.Errorf("identity: refresh: %w", err)
	}
	resp = resp.unwrap()
	if resp.AccessToken == "" {
		return Tokens{}, errors.New("identity: refresh: no access token in response")
	}
	next := Tokens{
		Access:    resp.AccessToken,
		Refresh:   resp.RefreshToken,
		ExpiresAt: s.ExpiresAt(resp.AccessToken),
		Principal: current.Principal,
	}
	if next.Refresh == "" {
		next.Refresh = current.Refresh
	}
	return next, nil
}

// ExpiresAt reads the exp claim without verifying the signature; the console
// only needs to know when to refresh, the backend does the verification.
func (s *Service) ExpiresAt(access string) time.Time {
	token, _, err := s.parser.ParseUnverified(access, jwt.MapClaims{})
	if err == nil {
		if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return s.now().Add(fallbackLifetime)
}
