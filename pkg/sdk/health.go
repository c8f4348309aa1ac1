package airweave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chitransport "github.com/AlejoJamC/airweave/internal/transport/chi"
)

// Health fetches the service health. An unhealthy service (503) is reported
// through the status, not as an error.
func (c *Client) Health(ctx context.Context) (_ HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("airweave: health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeError(resp)
	}

	var body chitransport.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return HealthStatus{}, fmt.Errorf("airweave: decode health: %w", err)
	}
	return HealthStatus{Status: body.Status, Checks: body.Checks}, nil
}
