// Package client is an HTTP client for a running vigilctl daemon. It is used
// by the CLI commands and can be embedded by other programs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vigil-labs/vigilctl/internal/controller"
)

// Client talks to the vigilctl HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // optional
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:9109",
		// Start and toggle wait behind the agent's health gate, so the
		// client timeout must exceed the 30s health bound.
		Timeout: 60 * time.Second,
	}
}

// New creates a vigilctl API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks whether the daemon answers its status endpoint.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Start asks the daemon to launch the agent.
func (c *Client) Start(ctx context.Context, opts controller.StartOptions) (controller.Result, error) {
	return c.postResult(ctx, "/start", opts)
}

// Stop asks the daemon to stop the agent.
func (c *Client) Stop(ctx context.Context) (controller.Result, error) {
	return c.postResult(ctx, "/stop", nil)
}

// SetTelegramEnabled flips the telegram alerting flag on the daemon.
func (c *Client) SetTelegramEnabled(ctx context.Context, enabled bool) (controller.Result, error) {
	return c.postResult(ctx, "/telegram", map[string]bool{"enabled": enabled})
}

// Status fetches the current agent snapshot.
func (c *Client) Status(ctx context.Context) (controller.Snapshot, error) {
	var snap controller.Snapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return snap, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return snap, fmt.Errorf("status request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return snap, apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode status: %w", err)
	}
	return snap, nil
}

func (c *Client) postResult(ctx context.Context, path string, body any) (controller.Result, error) {
	var res controller.Result
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return res, fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rdr)
	if err != nil {
		return res, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return res, fmt.Errorf("%s request: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return res, apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return res, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return fmt.Errorf("daemon: %s (status %d)", e.Error, resp.StatusCode)
	}
	return fmt.Errorf("daemon: unexpected status %d", resp.StatusCode)
}
