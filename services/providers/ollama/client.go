package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultBaseURL = "http://localhost:11434"

	defaultAttempts = 3
	defaultDelay    = 200 * time.Millisecond
)

// Client is a thin HTTP client for a local Ollama server. The embedder,
// generator, and guard adapters share it so connection settings live in
// one place.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
}

// Option adjusts a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry overrides the retry budget for transient failures.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// NewClient creates a client for the given Ollama base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		attempts: defaultAttempts,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// postJSON sends a JSON request and decodes the JSON response into out,
// retrying on transport errors and 5xx responses.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("calling ollama: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= http.StatusInternalServerError {
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("ollama returned status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("ollama returned status %d", resp.StatusCode))
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decoding response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
	)
}

// Ping checks that the Ollama server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}
