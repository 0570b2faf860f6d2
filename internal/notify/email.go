package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/reliefops/logistics-agent/internal/config"
)

// EmailChannel delivers over SMTP. STARTTLS is negotiated when the
// server offers it; login happens only when credentials are set.
type EmailChannel struct {
	cfg  config.EmailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg, send: smtp.SendMail}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(_ context.Context, n Notification) error {
	if len(c.cfg.Recipients) == 0 {
		return fmt.Errorf("email channel has no recipients")
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Severity)), n.Title)
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(c.cfg.Recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(n.Body)
	fmt.Fprintf(&msg, "\r\n\r\nTimestamp: %s\r\n", n.At.Format("2006-01-02 15:04:05 MST"))

	var auth smtp.Auth
	if c.cfg.Username != "" && c.cfg.Password != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPServer)
	}
	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPServer, c.cfg.SMTPPort)
	if err := c.send(addr, auth, c.cfg.From, c.cfg.Recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
