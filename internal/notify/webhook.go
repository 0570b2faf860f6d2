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

// WebhookChannel posts signed notification events to a partner
// endpoint. The shared secret travels in X-Webhook-Secret; custom
// headers from config are applied on top.
type WebhookChannel struct {
	cfg       config.WebhookConfig
	agentName string
	http      *http.Client
}

func NewWebhookChannel(cfg config.WebhookConfig, agentName string) *WebhookChannel {
	return &WebhookChannel{cfg: cfg, agentName: agentName, http: &http.Client{Timeout: channelHTTPTimeout}}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(map[string]any{
		"event_type": "notification",
		"data":       n,
		"agent":      c.agentName,
		"timestamp":  n.At,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Secret != "" {
		req.Header.Set("X-Webhook-Secret", c.cfg.Secret)
	}
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("webhook post: status %d", resp.StatusCode)
	}
}
