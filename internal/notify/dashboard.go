package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/reliefops/logistics-agent/internal/config"
)

// DashboardChannel pushes events to the operations dashboard.
type DashboardChannel struct {
	cfg  config.DashboardConfig
	http *http.Client
}

func NewDashboardChannel(cfg config.DashboardConfig) *DashboardChannel {
	return &DashboardChannel{cfg: cfg, http: &http.Client{Timeout: channelHTTPTimeout}}
}

func (c *DashboardChannel) Name() string { return "dashboard" }

func (c *DashboardChannel) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(map[string]any{
		"event_type": "notification",
		"org_id":     c.cfg.OrgID,
		"severity":   n.Severity,
		"title":      n.Title,
		"message":    n.Body,
		"fields":     n.Fields,
		"timestamp":  n.At,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dashboard post: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dashboard post: status %d", resp.StatusCode)
	}
	return nil
}
