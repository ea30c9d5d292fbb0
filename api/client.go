package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const apiKeyHeader = "X-API-Key"

// Client talks to the uptime monitoring service. The API key is attached as a
// header on authenticated calls and is never placed in URLs or logs.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu             sync.RWMutex
	apiKey         string
	onUnauthorized func()
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetAPIKey installs the credential used on authenticated calls.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// ClearAPIKey removes the credential.
func (c *Client) ClearAPIKey() {
	c.SetAPIKey("")
}

// OnUnauthorized registers a hook invoked whenever an authenticated call is
// rejected with 401. Unauthenticated calls (login, register, pricing) never
// trigger it.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}, authed bool) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("could not build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		c.mu.RLock()
		req.Header.Set(apiKeyHeader, c.apiKey)
		c.mu.RUnlock()
	}

	logrus.Debugf("%s %s", method, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Reason: "could not reach the monitoring service", err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Reason: "could not read response", err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if authed {
			c.mu.RLock()
			hook := c.onUnauthorized
			c.mu.RUnlock()
			if hook != nil {
				hook()
			}
		}
		return &Error{Kind: KindAuth, StatusCode: resp.StatusCode, Reason: serverReason(b, "invalid credentials")}
	}

	// Server-side failures are retryable, not user-input errors.
	if resp.StatusCode >= 500 {
		return &Error{Kind: KindNetwork, StatusCode: resp.StatusCode, Reason: "the monitoring service is unavailable"}
	}

	if resp.StatusCode >= 400 {
		return &Error{Kind: KindValidation, StatusCode: resp.StatusCode, Reason: serverReason(b, resp.Status)}
	}

	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			return &Error{Kind: KindNetwork, Reason: "could not decode response", err: err}
		}
	}

	return nil
}

// serverReason extracts the service's error message so it can be surfaced
// verbatim, falling back when the body is not the expected shape.
func serverReason(body []byte, fallback string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fallback
}

// Login exchanges credentials for an API key. It does not install the key.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		APIKey string `json:"api_key"`
	}
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", payload, &resp, false); err != nil {
		return "", err
	}
	return resp.APIKey, nil
}

// Register creates an account. The caller must still log in afterwards.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	payload := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	return c.do(ctx, http.MethodPost, "/auth/register", payload, nil, false)
}

// Profile fetches the authenticated user and subscription.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upgrade changes the subscription plan. The profile must be refetched
// afterwards to observe the new limits.
func (c *Client) Upgrade(ctx context.Context, plan string) error {
	payload := map[string]string{
		"plan": plan,
	}
	return c.do(ctx, http.MethodPost, "/auth/subscription/upgrade", payload, nil, true)
}

// Pricing fetches the public plan catalog.
func (c *Client) Pricing(ctx context.Context) ([]PricingPlan, error) {
	var resp struct {
		Plans []PricingPlan `json:"plans"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/pricing", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Plans, nil
}

// Websites fetches the full monitored site collection.
func (c *Client) Websites(ctx context.Context) ([]Website, error) {
	var sites []Website
	if err := c.do(ctx, http.MethodGet, "/monitoring/websites", nil, &sites, true); err != nil {
		return nil, err
	}
	return sites, nil
}

// AddWebsite registers a new site for monitoring.
func (c *Client) AddWebsite(ctx context.Context, name, url string, checkInterval int) (*Website, error) {
	payload := map[string]interface{}{
		"name":           name,
		"url":            url,
		"check_interval": checkInterval,
	}
	var site Website
	if err := c.do(ctx, http.MethodPost, "/monitoring/websites", payload, &site, true); err != nil {
		return nil, err
	}
	return &site, nil
}

// DeleteWebsite removes a monitored site.
func (c *Client) DeleteWebsite(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/monitoring/websites/%d", id), nil, nil, true)
}

// CheckWebsite requests an on-demand check. The result lands in the site
// collection once the service has processed it.
func (c *Client) CheckWebsite(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/monitoring/websites/%d/check", id), nil, nil, true)
}

// DashboardStats fetches the aggregate uptime numbers.
func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.do(ctx, http.MethodGet, "/monitoring/dashboard/stats", nil, &stats, true); err != nil {
		return nil, err
	}
	return &stats, nil
}
