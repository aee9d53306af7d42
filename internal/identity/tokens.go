package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/atelier-admin/atelier/internal/gateway"
)

const (
	// RefreshAccessTokenError marks a session whose refresh failed.
	RefreshAccessTokenError = "RefreshAccessTokenError"

	tokenPrefix = "atelier:tokens:"
	// refreshLeeway refreshes slightly before expiry so in-flight calls do
	// not race the deadline.
	refreshLeeway = 30 * time.Second
)

var (
	// ErrRefreshFailed is returned once a session carries RefreshAccessTokenError.
	ErrRefreshFailed = errors.New("identity: access token refresh failed")
	errNoTokens      = errors.New("identity: no tokens stored")
)

// TokenStore keeps session tokens in Redis next to the session itself.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore builds a store whose entries live as long as sessions.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Save replaces the tokens of sessionID and clears any error marker.
func (s *TokenStore) Save(ctx context.Context, sessionID string, t Tokens) error {
	key := tokenPrefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"access", t.Access,
		"refresh", t.Refresh,
		"expires", strconv.FormatInt(t.ExpiresAt.Unix(), 10),
	)
	if t.Principal != "" {
		pipe.HSet(ctx, key, "principal", t.Principal)
	}
	if t.Error != "" {
		pipe.HSet(ctx, key, "error", t.Error)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Load returns the tokens of sessionID.
func (s *TokenStore) Load(ctx context.Context, sessionID string) (Tokens, error) {
	values, err := s.client.HGetAll(ctx, tokenPrefix+sessionID).Result()
	if err != nil {
		return Tokens{}, err
	}
	if len(values) == 0 {
		return Tokens{}, errNoTokens
	}
	expires, _ := strconv.ParseInt(values["expires"], 10, 64)
	return Tokens{
		Access:    values["access"],
		Refresh:   values["refresh"],
		ExpiresAt: time.Unix(expires, 0),
		Principal: values["principal"],
		Error:     values["error"],
	}, nil
}

// MarkError flags sessionID with marker.
func (s *TokenStore) MarkError(ctx context.Context, sessionID, marker string) error {
	return s.client.HSet(ctx, tokenPrefix+sessionID, "error", marker).Err()
}

// Delete forgets the tokens of sessionID.
func (s *TokenStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, tokenPrefix+sessionID).Err()
}

// Provider hands out access tokens per session and refreshes expired ones.
// Concurrent callers of one session share a single refresh.
type Provider struct {
	service *Service
	store   *TokenStore
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewProvider constructs a Provider.
func NewProvider(service *Service, store *TokenStore, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{service: service, store: store, logger: logger, now: time.Now}
}

// SignIn stores fresh tokens for sessionID.
func (p *Provider) SignIn(ctx context.Context, sessionID string, t Tokens) error {
	return p.store.Save(ctx, sessionID, t)
}

// SignOut drops the tokens of sessionID.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	return p.store.Delete(ctx, sessionID)
}

// ForSession binds the provider to one session as a gateway token source.
func (p *Provider) ForSession(sessionID string) gateway.TokenSource {
	return gateway.TokenFunc(func(ctx context.Context) (string, error) {
		return p.Token(ctx, sessionID)
	})
}

// Principal returns the user sessionID signed in as.
func (p *Provider) Principal(ctx context.Context, sessionID string) (string, error) {
	tokens, err := p.store.Load(ctx, sessionID)
	if errors.Is(err, errNoTokens) {
		return "", gateway.ErrNoAccessToken
	}
	if err != nil {
		return "", fmt.Errorf("identity: load tokens: %w", err)
	}
	if tokens.Principal == "" {
		return "", gateway.ErrNoAccessToken
	}
	return tokens.Principal, nil
}

// Token returns a usable access token of sessionID.
func (p *Provider) Token(ctx context.Context, sessionID string) (string, error) {
	tokens, err := p.store.Load(ctx, sessionID)
	if errors.Is(err, errNoTokens) {
		return "", gateway.ErrNoAccessToken
	}
	if err != nil {
		return "", fmt.Errorf("identity: load tokens: %w", err)
	}
	if tokens.Error != "" {
		return "", ErrRefreshFailed
	}
	if tokens.Access == "" {
		return "", gateway.ErrNoAccessToken
	}
	if p.valid(tokens) {
		return tokens.Access, nil
	}

	detached := context.WithoutCancel(ctx)
	v, err, _ := p.group.Do(sessionID, func() (any, error) {
		return p.refresh(detached, sessionID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *Provider) refresh(ctx context.Context, sessionID string) (string, error) {
	// Another instance may have refreshed while this one waited.
	current, err := p.store.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("identity: reload tokens: %w", err)
	}
	if current.Error != "" {
		return "", ErrRefreshFailed
	}
	if p.valid(current) {
		return current.Access, nil
	}
	next, err := p.service.Refresh(ctx, current)
	if err != nil {
		p.logger.Warn("access token refresh failed", slog.String("session", sessionID), slog.Any("error", err))
		if markErr := p.store.MarkError(ctx, sessionID, RefreshAccessTokenError); markErr != nil {
			p.logger.Error("mark session refresh error", slog.Any("error", markErr))
		}
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if err := p.store.Save(ctx, sessionID, next); err != nil {
		return "", fmt.Errorf("identity: save tokens: %w", err)
	}
	return next.Access, nil
}

func (p *Provider) valid(t Tokens) bool {
	return p.now().Add(refreshLeeway).Before(t.ExpiresAt)
}
