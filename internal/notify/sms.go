package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reliefops/logistics-agent/internal/config"
)

const channelHTTPTimeout = 10 * time.Second

// SMSChannel posts one message per recipient to the SMS gateway.
type SMSChannel struct {
	cfg  config.SMSConfig
	http *http.Client
}

func NewSMSChannel(cfg config.SMSConfig) *SMSChannel {
	return &SMSChannel{cfg: cfg, http: &http.Client{Timeout: channelHTTPTimeout}}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Send(ctx context.Context, n Notification) error {
	if len(c.cfg.Recipients) == 0 {
		return fmt.Errorf("sms channel has no recipients")
	}
	text := fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(n.Severity)), n.Title, n.Body)

	for _, recipient := range c.cfg.Recipients {
		body, err := json.Marshal(map[string]string{
			"from":    c.cfg.From,
			"to":      recipient,
			"message": text,
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
			return fmt.Errorf("sms to %s: %w", recipient, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("sms to %s: status %d", recipient, resp.StatusCode)
		}
	}
	return nil
}
