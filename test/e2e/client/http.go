// Package client provides an HTTP client for driving a running guardian
// service from e2e scenarios.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paymentops/guardian/scenario"
	"github.com/paymentops/guardian/test/e2e/config"
)

// Client talks to the guardian HTTP API.
type Client struct {
	baseURL      string
	pollInterval time.Duration
	httpClient   *http.Client
}

// New creates a client for the service at cfg.BaseURL.
func New(cfg *config.Config) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		pollInterval: cfg.PollInterval,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Status fetches the current system snapshot.
func (c *Client) Status(ctx context.Context) (*scenario.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get status: unexpected status %d", resp.StatusCode)
	}

	var snap scenario.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &snap, nil
}

// SetScenario injects a scenario and returns the HTTP status code plus the
// trigger status reported by the service.
func (c *Client) SetScenario(ctx context.Context, scenarioType string) (int, string, error) {
	body, err := json.Marshal(map[string]string{"scenario_type": scenarioType})
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/set_scenario", bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("set scenario: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read trigger response: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		// Error responses use a different envelope; the status code is
		// still meaningful.
		return resp.StatusCode, "", nil
	}
	return resp.StatusCode, out.Status, nil
}

// Healthz checks the liveness endpoint.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthz: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// WaitForIdle polls status until no run is in flight or ctx expires.
// Returns the final snapshot.
func (c *Client) WaitForIdle(ctx context.Context) (*scenario.Snapshot, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		snap, err := c.Status(ctx)
		if err != nil {
			return nil, err
		}
		if !snap.Processing {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for run to finish: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
