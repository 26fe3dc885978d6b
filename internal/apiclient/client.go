// Package apiclient talks to the media server's HTTP API.
package apiclient

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
	"sync"

	"clipdeck/internal/gate"
	"clipdeck/pkg/models"
)

// SessionCookie is the cookie the server keeps the session in
const SessionCookie = "token"

var (
	ErrUnauthorized       = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrServer             = errors.New("server returned error")
	ErrInvalidBaseURL     = errors.New("invalid server URL")
)

// HTTPClient interface for mocking
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a media server API client. It carries the session cookie
// itself so the same value can be handed to the player process.
type Client struct {
	baseURL    *url.URL
	httpClient HTTPClient
	logger     *slog.Logger

	mu    sync.RWMutex
	token string
}

// New creates a client for the server at baseURL
func New(baseURL string, logger *slog.Logger) (*Client, error) {
	return NewWithClient(baseURL, &http.Client{}, logger)
}

// NewWithClient creates a client with a custom HTTP client
func NewWithClient(baseURL string, httpClient HTTPClient, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBaseURL, u.Scheme)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    u,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the server URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SessionToken returns the current session cookie value
func (c *Client) SessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetSessionToken restores a previously saved session
func (c *Client) SetSessionToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// CookieHeader returns the Cookie header value for the session, or ""
func (c *Client) CookieHeader() string {
	token := c.SessionToken()
	if token == "" {
		return ""
	}
	return (&http.Cookie{Name: SessionCookie, Value: token}).String()
}

// ResolveURL turns a server-relative path such as /api/video/x.mp4 into an
// absolute URL. Absolute URLs are returned unchanged.
func (c *Client) ResolveURL(src string) string {
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return c.baseURL.ResolveReference(ref).String()
}

// ListMedia fetches the catalog from GET /api/media
func (c *Client) ListMedia(ctx context.Context) ([]models.MediaAsset, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/media", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media list: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("failed to fetch media list: %w", err)
	}

	var body models.MediaListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse media list: %w", err)
	}

	if body.Error != nil && *body.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServer, *body.Error)
	}

	return body.Data, nil
}

// CheckAuth reports whether the session is authenticated. Any failure,
// including network errors, counts as not authenticated.
func (c *Client) CheckAuth(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/api/auth", nil)
	if err != nil {
		c.logger.Debug("auth check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Login posts the credentials and keeps the session cookie the server sets
func (c *Client) Login(ctx context.Context, creds gate.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/login", creds)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidCredentials
	}
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookie {
			c.SetSessionToken(cookie.Value)
			return nil
		}
	}

	return fmt.Errorf("%w: login response carried no session cookie", ErrServer)
}

// Logout ends the session. The local cookie is dropped even if the
// request fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetSessionToken("")

	resp, err := c.do(ctx, http.MethodGet, "/api/logout", nil)
	if err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// ChangePassword validates the form locally and posts it
func (c *Client) ChangePassword(ctx context.Context, req gate.PasswordChange) error {
	if err := req.Validate(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/change-password", req)
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidCredentials
	}
	return checkStatus(resp)
}

// Download opens the raw bytes behind src. The caller closes the body.
func (c *Client) Download(ctx context.Context, src string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src, err)
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: %w", src, err)
	}

	return resp.Body, nil
}

// do builds and sends a request against the server
func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ResolveURL(path), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.SessionToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}

	c.logger.Debug("api request", "method", method, "path", path)
	return c.httpClient.Do(req)
}

// checkStatus maps non-2xx responses to errors
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	var envelope struct {
		Error *string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil && *envelope.Error != "" {
		return fmt.Errorf("%w: status %d: %s", ErrServer, resp.StatusCode, *envelope.Error)
	}

	return fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
}
