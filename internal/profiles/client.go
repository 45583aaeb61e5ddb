package profiles

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

	"github.com/brianhealey/hadash/internal/auth"
)

const maxResponseBytes = 4 << 20

// Client talks to the remote profile collection. Requests are never retried;
// the caller decides whether and how to retry.
type Client struct {
	BaseURL    string
	APIKey     string // sent when the backend requires a key
	HTTPClient *http.Client
}

// NewClient returns a client for the collection at baseURL, for example
// "http://homeassistant.local:8099/api/profiles".
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// List returns every profile of userID.
func (c *Client) List(ctx context.Context, userID string) ([]*Profile, error) {
	q := url.Values{"ha_user_id": {userID}}
	var out []*Profile
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Profile{}
	}
	return out, nil
}

// Get fetches one profile.
func (c *Client) Get(ctx context.Context, id, userID string) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, c.itemURL(id), userID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create stores a new profile and returns it as saved by the backend.
func (c *Client) Create(ctx context.Context, in Input) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodPost, c.BaseURL, in.UserID, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces profile id and returns it as saved by the backend.
func (c *Client) Update(ctx context.Context, id string, in Input) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodPut, c.itemURL(id), in.UserID, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes profile id.
func (c *Client) Remove(ctx context.Context, id, userID string) error {
	return c.do(ctx, http.MethodDelete, c.itemURL(id), userID, nil, nil)
}

func (c *Client) itemURL(id string) string {
	return c.BaseURL + "/" + url.PathEscape(id)
}

// do sends one request. userID, when set, goes into UserHeader. Non-2xx
// responses become *APIError.
func (c *Client) do(ctx context.Context, method, target, userID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("profiles: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("profiles: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	if c.APIKey != "" {
		req.Header.Set(auth.KeyHeader, c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("profiles: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("profiles: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("profiles: decode response: %w", err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
