// Package remote is the client for the coinwise backend. Every protected
// call carries the session's bearer token. Calls are never retried; a
// failure surfaces to the caller as is.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
)

// Config represents the configuration for the backend client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration // Default: 30 seconds
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client is shared by every request; Session binds it to one user.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
}

func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger.WithComponent(log.ComponentRemote),
	}
}

var _ ledger.Authenticator = (*Client)(nil)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds ledger.Credentials) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", false, nil, creds, &resp); err != nil {
		return "", err
	}
	token := resp.AccessToken
	if token == "" {
		token = resp.Token
	}
	if token == "" {
		return "", fmt.Errorf("login response carried no token: %w", ErrMissingToken)
	}
	return token, nil
}

func (c *Client) Signup(ctx context.Context, creds ledger.Credentials) error {
	return c.do(ctx, http.MethodPost, "/auth/signup", "", false, nil, creds, nil)
}

// Me resolves the user owning token.
func (c *Client) Me(ctx context.Context, token string) (core.User, error) {
	var raw struct {
		ID       flexID `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, true, nil, nil, &raw); err != nil {
		return core.User{}, err
	}
	return core.User{ID: string(raw.ID), Email: raw.Email, Username: raw.Username}, nil
}

// GuestChat forwards a prompt without credentials.
func (c *Client) GuestChat(ctx context.Context, prompt string) (string, error) {
	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/ai/coinwise-ai", "", false, nil, chatRequest{Prompt: prompt}, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// Ping reports whether the backend answers at all; any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp.Body.Close()
	return nil
}

// do sends one request. body is JSON-encoded when non-nil; out is decoded
// from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, method, path, token string, protected bool, query url.Values, body, out any) error {
	if protected && token == "" {
		return ErrMissingToken
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Backend request failed",
			log.FieldMethod, method, log.FieldPath, path, log.FieldError, err)
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Backend request completed",
		log.FieldMethod, method, log.FieldPath, path,
		log.FieldBackendStatus, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// idString accepts numeric and string ids.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}
