// Package client is a Go client for the KPI dashboard API with the session,
// layout and polling behaviour of the web frontend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// ImportChunkSize is how many manual values are sent per request
const ImportChunkSize = 50

type Client struct {
	baseURL    string
	httpClient *http.Client

	// OnUnauthorized is called on every 401 so callers can drop local auth state
	OnUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Message string
	Code    string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%d: %s (%s)", e.Status, e.Message, e.Field)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// ShareError reports why a share link could not be opened
type ShareError struct {
	Code string
}

const (
	ShareNotFound = "not_found"
	ShareExpired  = "expired"
	ShareInactive = "inactive"
)

func (e *ShareError) Error() string {
	switch e.Code {
	case ShareExpired:
		return "This share link has expired"
	case ShareInactive:
		return "This share link has been deactivated"
	default:
		return "This share link does not exist"
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && c.OnUnauthorized != nil {
		c.OnUnauthorized()
	}
	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
			Field string `json:"field"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error, Code: payload.Code, Field: payload.Field}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type Session struct {
	ExpiresAt time.Time `json:"expires_at"`
	User      struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	} `json:"user"`
}

// Login stores the session cookie in the client's jar
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// GetDashboardData returns the raw data response so callers can decode only what they render
func (c *Client) GetDashboardData(ctx context.Context, dashboardID, period string) (json.RawMessage, error) {
	path := "/api/dashboards/" + url.PathEscape(dashboardID) + "/data"
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SaveLayout matches SaveLayoutFunc
func (c *Client) SaveLayout(ctx context.Context, dashboardID string, layout []LayoutItem) error {
	path := "/api/dashboards/" + url.PathEscape(dashboardID) + "/layout"
	return c.do(ctx, http.MethodPatch, path, map[string]interface{}{"layout": layout}, nil)
}

type Value struct {
	Timestamp *time.Time  `json:"timestamp,omitempty"`
	Value     interface{} `json:"value"`
}

// ImportValues sends values in sequential chunks. It stops at the first failed
// chunk and returns how many values were recorded before it.
func (c *Client) ImportValues(ctx context.Context, integrationID, fieldID string, values []Value, progress func(done, total int)) (int, error) {
	path := "/api/integrations/" + url.PathEscape(integrationID) + "/fields/" + url.PathEscape(fieldID) + "/values"

	done := 0
	for start := 0; start < len(values); start += ImportChunkSize {
		end := start + ImportChunkSize
		if end > len(values) {
			end = len(values)
		}

		var resp struct {
			Recorded int `json:"recorded"`
		}
		if err := c.do(ctx, http.MethodPost, path, map[string]interface{}{"values": values[start:end]}, &resp); err != nil {
			return done, fmt.Errorf("import chunk at row %d: %w", start, err)
		}
		done += resp.Recorded
		if progress != nil {
			progress(end, len(values))
		}
	}
	return done, nil
}

type Shared struct {
	Type       string          `json:"type"`
	ShowTarget bool            `json:"showTarget"`
	ExpiresAt  *time.Time      `json:"expiresAt"`
	Period     string          `json:"period"`
	Dashboard  json.RawMessage `json:"dashboard,omitempty"`
	Widgets    json.RawMessage `json:"widgets,omitempty"`
	Kpi        json.RawMessage `json:"kpi,omitempty"`
	History    json.RawMessage `json:"history,omitempty"`
}

// GetShared opens a share link without a session. Link failures come back as *ShareError.
func (c *Client) GetShared(ctx context.Context, token string) (*Shared, error) {
	var shared Shared
	err := c.do(ctx, http.MethodGet, "/api/shared/"+url.PathEscape(token), nil, &shared)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			switch apiErr.Code {
			case ShareNotFound, ShareExpired, ShareInactive:
				return nil, &ShareError{Code: apiErr.Code}
			}
		}
		return nil, err
	}
	return &shared, nil
}
