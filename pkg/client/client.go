// Package client is the Go client for the equity API. It owns the session
// token lifecycle, injects the bearer credential into every request, and
// watches the response pipeline for authentication failures.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrMissingRequiredField is raised locally, before any request is sent.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrEmptyID is raised by update/delete calls without an asset id.
	ErrEmptyID = errors.New("asset id required")
	// ErrAnonymousWritesDisabled is returned by the fallback store when
	// unauthenticated edits to local storage are not allowed.
	ErrAnonymousWritesDisabled = errors.New("anonymous local writes are disabled")
)

// APIError is a non-2xx response, carrying the server's error message
// verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return e.Message
}

// IsAuthError reports whether err is a 401/422 response, the two statuses
// the backend uses for a rejected token.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusUnprocessableEntity)
}

type Config struct {
	// BaseURL of the backend, e.g. "http://localhost:8080".
	BaseURL string
	// Timeout is the fixed per-request deadline. Defaults to 15s. There is
	// no retry or backoff.
	Timeout time.Duration
	// TokenStore persists the session token across restarts. Defaults to an
	// in-memory store.
	TokenStore TokenStore
	// CachePath, when set, enables the local fallback asset store at that
	// file path.
	CachePath string
	// AllowAnonymousWrites lets unauthenticated sessions mutate the local
	// fallback store. Off by default.
	AllowAnonymousWrites bool
	Logger               *logrus.Logger
}

type Client struct {
	baseURL              string
	http                 *http.Client
	log                  *logrus.Logger
	session              *Session
	cache                *LocalStore
	allowAnonymousWrites bool
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.TokenStore == nil {
		cfg.TokenStore = NewMemoryTokenStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	c := &Client{
		baseURL:              cfg.BaseURL,
		log:                  cfg.Logger,
		allowAnonymousWrites: cfg.AllowAnonymousWrites,
	}
	if cfg.CachePath != "" {
		c.cache = NewLocalStore(cfg.CachePath, cfg.Logger)
	}
	c.session = newSession(c, cfg.TokenStore, c.cache, cfg.Logger)
	c.http = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &authTransport{base: http.DefaultTransport, session: c.session},
	}
	return c
}

func (c *Client) Session() *Session { return c.session }

// Store returns the asset backend for the current session state: the remote
// API when authenticated, otherwise the local fallback. Without a configured
// cache (or with anonymous writes disabled) the fallback rejects mutations.
func (c *Client) Store() Store {
	if c.session.IsAuthenticated() {
		return &RemoteStore{c: c}
	}
	return &fallbackStore{cache: c.cache, allowWrites: c.allowAnonymousWrites}
}

// authTransport is the interception point of the request pipeline: it
// attaches the current token and forces session invalidation on any 401,
// regardless of which operation triggered it.
type authTransport struct {
	base    http.RoundTripper
	session *Session
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if token := t.session.Token(); token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := t.base.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		t.session.forceInvalidate()
	}
	return resp, err
}

// do runs one request against the API. Failures are surfaced to the caller;
// there is no retry. A non-2xx body of the form {"error": "..."} becomes an
// *APIError with that message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnf("%s %s failed: %v", method, path, err)
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil {
			apiErr.Message = e.Error
		}
		c.log.Warnf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Message)
		return apiErr
	}

	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}
