// Package directory queries the server's room listing and caches the most
// recent snapshot. It is a cache for display, not part of the protocol.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Room is the minimal descriptor returned by the listing.
type Room struct {
	Name string `json:"name"`
}

// Rooms maps room name to descriptor.
type Rooms map[string]Room

// Client makes the read-only /rooms call.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch fetches /rooms.
func (c *Client) Fetch(ctx context.Context) (Rooms, error) {
	var out Rooms
	if err := c.get(ctx, "/rooms", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Rooms{}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding: %w", path, err)
	}
	return nil
}
