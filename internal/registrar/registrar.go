// Package registrar notifies an external reverse proxy about session routes.
// Registration is advisory: when it fails, the built-in WebSocket relay
// remains the path to the session.
package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

// New returns nil when url is empty; callers treat a nil client as
// "registration disabled".
func New(url string) *Client {
	if url == "" {
		return nil
	}
	return &Client{
		baseURL: url,
		httpc:   &http.Client{Timeout: 5 * time.Second},
	}
}

type registration struct {
	RoutePath  string `json:"route_path"`
	TargetHost string `json:"target_host"`
	TargetPort int    `json:"target_port"`
}

// Register maps routePath to the session endpoint. The caller logs failures
// and carries on; nothing here is retried.
func (c *Client) Register(ctx context.Context, routePath, targetHost string, targetPort int) error {
	body, err := json.Marshal(registration{
		RoutePath:  routePath,
		TargetHost: targetHost,
		TargetPort: targetPort,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("register route %s: %w", routePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("register route %s: unexpected status %d", routePath, resp.StatusCode)
	}
	return nil
}
