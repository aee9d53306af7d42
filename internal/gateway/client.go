// Package gateway talks to the record backend: it attaches the bearer token,
// decodes the {success, message, data} envelope and classifies failures.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxBodyBytes = 4 << 20

// TokenSource yields the access token of the caller.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always yields the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoAccessToken
	}
	return string(s), nil
}

// Observer receives the outcome of every backend round trip.
type Observer interface {
	ObserveBackend(method string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Contract   *Contract
	Observer   Observer
	Logger     *slog.Logger
}

// Client is safe for concurrent use. WithTokens derives per-caller copies.
type Client struct {
	base     *url.URL
	http     *http.Client
	tokens   TokenSource
	contract *Contract
	observer Observer
	logger   *slog.Logger
}

// New validates the base URL and builds a client without credentials.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: base url %q must be absolute", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:     base,
		http:     httpClient,
		contract: opts.Contract,
		observer: opts.Observer,
		logger:   logger,
	}, nil
}

// WithTokens returns a copy of c authenticating with ts.
func (c *Client) WithTokens(ts TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	return &clone
}

// Do sends an authenticated request and decodes the envelope data into out.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	env, err := c.roundTrip(ctx, method, path, query, body, true)
	if err != nil {
		return err
	}
	return decodeData(method+" "+path, env.Data, out)
}

// PostJSON sends an unauthenticated POST and decodes the raw JSON answer.
// The identity endpoints answer without the envelope.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	op := http.MethodPost + " " + path
	status, raw, err := c.send(ctx, http.MethodPost, path, nil, body, false)
	if err != nil {
		return err
	}
	if err := classify(op, status, raw); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindContract, Op: op, Status: status, Err: err}
	}
	return nil
}

// List fetches a paginated collection. The data is checked against the list
// contract before decoding.
func List[T any](ctx context.Context, c *Client, path string, query url.Values) (ListData[T], error) {
	var data ListData[T]
	op := http.MethodGet + " " + path
	env, err := c.roundTrip(ctx, http.MethodGet, path, query, nil, true)
	if err != nil {
		return data, err
	}
	if err := c.contract.Validate(op, env.Data); err != nil {
		return data, err
	}
	if err := decodeData(op, env.Data, &data); err != nil {
		return data, err
	}
	if data.Items == nil {
		data.Items = []T{}
	}
	return data, nil
}

// Get fetches one record.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

// Create posts body to path.
func (c *Client) Create(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Update puts body to path.
func (c *Client) Update(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete removes the record at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any, auth bool) (Envelope, error) {
	op := method + " " + path
	var env Envelope
	status, raw, err := c.send(ctx, method, path, query, body, auth)
	if err != nil {
		return env, err
	}
	if err := classify(op, status, raw); err != nil {
		return env, err
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, &Error{Kind: KindContract, Op: op, Status: status, Err: err}
	}
	if !env.Success {
		return env, &Error{Kind: KindRejected, Op: op, Status: status, Message: env.Message}
	}
	return env, nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, auth bool) (int, []byte, error) {
	op := method + " " + path
	target := c.base.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("gateway: encode %s: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("gateway: build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token, err := c.token(ctx)
		if err != nil {
			return 0, nil, &Error{Kind: KindAuth, Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, 0, started)
		c.logger.Warn("backend request failed", slog.String("op", op), slog.Any("error", err))
		return 0, nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(method, resp.StatusCode, started)
	if err != nil {
		return resp.StatusCode, nil, &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", ErrNoAccessToken
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoAccessToken
	}
	return token, nil
}

func (c *Client) observe(method string, status int, started time.Time) {
	if c.observer != nil {
		c.observer.ObserveBackend(method, status, time.Since(started))
	}
}

func classify(op string, status int, raw []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: KindAuth, Op: op, Status: status, Message: envelopeMessage(raw)}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Op: op, Status: status, Message: envelopeMessage(raw)}
	case status >= 500:
		return &Error{Kind: KindNetwork, Op: op, Status: status, Message: envelopeMessage(raw)}
	default:
		return &Error{Kind: KindRejected, Op: op, Status: status, Message: envelopeMessage(raw)}
	}
}

func envelopeMessage(raw []byte) string {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.Message
}

func decodeData(op string, data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindContract, Op: op, Err: err}
	}
	return nil
}

// IsCanceled reports whether err comes from the caller giving up.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
