// Package apiclient is the terminal client's view of the orderbelld REST API.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/orderbell/internal/model"
)

// Client calls the server with the staff member's bearer token and retries
// with backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// New creates a Client for the server at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		maxRetries: 3,
	}
}

// GetOrder loads a single order.
func (c *Client) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	var o model.Order
	if err := c.get(ctx, "/v1/orders/"+strconv.FormatInt(id, 10), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request GET %s: %w", path, err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429) on GET %s", path)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfter(resp, attempt)):
				continue
			}
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("GET %s: %w", path, model.ErrUnauthorized)
		case resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("GET %s: %w", path, model.ErrForbidden)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("GET %s: %w", path, model.ErrNotFound)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			var e errorBody
			if json.Unmarshal(body, &e) == nil && e.Error != "" {
				return fmt.Errorf("server error (%d) on GET %s: %s", resp.StatusCode, path, e.Error)
			}
			return fmt.Errorf("unexpected status %d on GET %s", resp.StatusCode, path)
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshaling response from GET %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfter honours the Retry-After header, falling back to 1s, 2s, 4s...
func retryAfter(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
