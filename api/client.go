// Package api talks to the knowledge-base web application: session login,
// conversations, chat messages, feedback and catalog lookups.
package api

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
	"sync"
	"time"

	"askforge-client/utils"

	"github.com/google/uuid"
)

// Per-call timeouts.
const (
	MetadataTimeout  = 10 * time.Second
	SendTimeout      = 120 * time.Second
	ImageSendTimeout = 180 * time.Second
)

// Client is a session-cookie HTTP client for one server. It is safe for
// concurrent use by the UI's worker goroutines.
type Client struct {
	mu        sync.RWMutex
	baseURL   string
	http      *http.Client
	csrfToken string
	user      *User

	images *ImageCache
	logger *utils.Logger
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, logger *utils.Logger) *Client {
	c := &Client{
		baseURL: normalizeBaseURL(baseURL),
		images:  NewImageCache(),
		logger:  logger,
	}
	c.http = &http.Client{Jar: newJar()}
	return c
}

func newJar() http.CookieJar {
	// cookiejar.New only fails on a bad PublicSuffixList
	jar, _ := cookiejar.New(nil)
	return jar
}

func normalizeBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points the client at another server. The session is kept; a
// new login is needed for it to be valid there.
func (c *Client) SetBaseURL(u string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = normalizeBaseURL(u)
}

// User returns the logged-in user, or nil.
func (c *Client) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Logout drops the session cookies, CSRF token and user.
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.http = &http.Client{Jar: newJar()}
	c.csrfToken = ""
	c.user = nil
}

// Images returns the session image cache.
func (c *Client) Images() *ImageCache {
	return c.images
}

// ResolveURL makes site-relative URLs absolute against the base URL.
func (c *Client) ResolveURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "data:") {
		return u
	}
	base := c.BaseURL()
	if strings.HasPrefix(u, "/") {
		return base + u
	}
	return base + "/" + u
}

func (c *Client) apiURL(endpoint string) string {
	return c.BaseURL() + "/api" + endpoint
}

// do performs one request bounded by timeout and returns status and body.
// Transport failures are returned unchanged so callers can classify them.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, rawURL string, body io.Reader, contentType string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.mu.RLock()
	if c.csrfToken != "" {
		req.Header.Set("X-CSRF-Token", c.csrfToken)
	}
	httpClient := c.http
	c.mu.RUnlock()

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger.Warn("%s %s failed after %v [%s]: %v", method, req.URL.Path, time.Since(start).Round(time.Millisecond), requestID, err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("%s %s -> %d in %v [%s]", method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond), requestID)
	return resp.StatusCode, data, nil
}

// getJSON issues a metadata GET and decodes a 200 body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	status, data, err := c.do(ctx, MetadataTimeout, http.MethodGet, c.apiURL(endpoint), nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return newError(status, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return nil
}

// sendJSON marshals in as the request body and returns status and body.
func (c *Client) sendJSON(ctx context.Context, timeout time.Duration, method, endpoint string, in interface{}) (int, []byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, timeout, method, c.apiURL(endpoint), bytes.NewReader(payload), "application/json")
}

// TestConnection reports whether the server's home page answers 200.
func (c *Client) TestConnection(ctx context.Context) error {
	status, data, err := c.do(ctx, MetadataTimeout, http.MethodGet, c.BaseURL(), nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return newError(status, data)
	}
	return nil
}

// Login runs the credentials exchange: fetch a CSRF token, post the form,
// then read the session. No user in the session means bad credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	base := c.BaseURL()

	status, data, err := c.do(ctx, MetadataTimeout, http.MethodGet, base+"/api/auth/csrf", nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch CSRF token: %w", err)
	}
	if status == http.StatusOK {
		var csrf struct {
			CSRFToken string `json:"csrfToken"`
		}
		if json.Unmarshal(data, &csrf) == nil {
			c.mu.Lock()
			c.csrfToken = csrf.CSRFToken
			c.mu.Unlock()
		}
	}

	c.mu.RLock()
	token := c.csrfToken
	c.mu.RUnlock()

	form := url.Values{
		"email":       {email},
		"password":    {password},
		"csrfToken":   {token},
		"callbackUrl": {base},
		"json":        {"true"},
	}
	// the callback answers with a redirect or a JSON url; only the cookie matters
	if _, _, err := c.do(ctx, MetadataTimeout, http.MethodPost, base+"/api/auth/callback/credentials",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded"); err != nil {
		return nil, fmt.Errorf("failed to submit credentials: %w", err)
	}

	status, data, err = c.do(ctx, MetadataTimeout, http.MethodGet, base+"/api/auth/session", nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if status != http.StatusOK {
		return nil, ErrInvalidCredentials
	}

	var session struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(data, &session); err != nil || session.User == nil {
		return nil, ErrInvalidCredentials
	}

	c.mu.Lock()
	c.user = session.User
	c.mu.Unlock()

	c.logger.Info("Logged in as %s", session.User.Email)
	return session.User, nil
}
