// Package notify fans operational notifications out to stakeholder
// channels. Channel failures are logged and never abort the other
// channels or the caller.
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/reliefops/logistics-agent/internal/config"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// Notification is one message to stakeholders. Fields carries
// structured detail for channels that can render it.
type Notification struct {
	Severity Severity       `json:"severity"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Fields   map[string]any `json:"fields,omitempty"`
	At       time.Time      `json:"at"`
}

// Channel delivers a notification to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

type route struct {
	channel Channel
	min     Severity
}

// Dispatcher routes notifications to channels by severity floor:
// dashboard sees everything, webhook and the ops queue see warnings
// and up, email and SMS only critical traffic.
type Dispatcher struct {
	logger *logrus.Logger
	routes []route
}

func NewDispatcher(logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Register adds a channel that receives notifications at or above min.
func (d *Dispatcher) Register(ch Channel, min Severity) {
	d.routes = append(d.routes, route{channel: ch, min: min})
}

// FromConfig registers the HTTP and SMTP channels enabled in cfg. The
// ops queue channel owns a connection and is registered separately by
// the caller.
func FromConfig(cfg *config.Config, logger *logrus.Logger) *Dispatcher {
	d := NewDispatcher(logger)
	if cfg.Notify.Dashboard.Enabled {
		d.Register(NewDashboardChannel(cfg.Notify.Dashboard), SeverityInfo)
	}
	if cfg.Notify.Webhook.Enabled {
		d.Register(NewWebhookChannel(cfg.Notify.Webhook, cfg.AgentName), SeverityWarning)
	}
	if cfg.Notify.Email.Enabled {
		d.Register(NewEmailChannel(cfg.Notify.Email), SeverityCritical)
	}
	if cfg.Notify.SMS.Enabled {
		d.Register(NewSMSChannel(cfg.Notify.SMS), SeverityCritical)
	}
	return d
}

// Dispatch sends n to every channel whose floor it clears. All
// eligible channels are attempted; the returned error is the first
// failure, for observability only.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	var g errgroup.Group
	for _, r := range d.routes {
		if severityRank[n.Severity] < severityRank[r.min] {
			continue
		}
		r := r
		g.Go(func() error {
			if err := r.channel.Send(ctx, n); err != nil {
				d.logger.WithFields(logrus.Fields{
					"channel":  r.channel.Name(),
					"severity": n.Severity,
					"title":    n.Title,
					"error":    err,
				}).Error("notification delivery failed")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
