package connector

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reliefops/logistics-agent/internal/config"
	"github.com/reliefops/logistics-agent/internal/model"
)

const maxAlternatives = 5

// TransportClient reads and steers shipments through the transport
// system. Its AlternativeRoutes method satisfies the routing oracle's
// alternatives half.
type TransportClient struct {
	*Client
	agentName string
}

func NewTransportClient(cfg *config.Config, logger *logrus.Logger) *TransportClient {
	return &TransportClient{
		Client:    NewClient(cfg.Transport, cfg.API, logger),
		agentName: cfg.AgentName,
	}
}

// ActiveShipments returns all shipments the transport system considers
// live, keyed by shipment id.
func (c *TransportClient) ActiveShipments(ctx context.Context) (map[string]model.Shipment, error) {
	var payload struct {
		Shipments []model.Shipment `json:"shipments"`
	}
	if err := c.getJSON(ctx, "shipments/active", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch active shipments: %w", err)
	}
	out := make(map[string]model.Shipment, len(payload.Shipments))
	for _, sp := range payload.Shipments {
		out[sp.ID] = sp
	}
	return out, nil
}

// Route returns the static description of one route.
func (c *TransportClient) Route(ctx context.Context, routeID string) (model.Route, error) {
	var route model.Route
	if err := c.getJSON(ctx, "routes/"+routeID, nil, &route); err != nil {
		return model.Route{}, fmt.Errorf("fetch route %s: %w", routeID, err)
	}
	return route, nil
}

// AlternativeRoutes asks the transport system for up to five routes
// between origin and destination, excluding the one being abandoned.
func (c *TransportClient) AlternativeRoutes(ctx context.Context, origin, destination, excludeRoute string) ([]model.AlternativeRoute, error) {
	query := url.Values{}
	query.Set("origin", origin)
	query.Set("destination", destination)
	query.Set("max", fmt.Sprint(maxAlternatives))
	if excludeRoute != "" {
		query.Set("exclude", excludeRoute)
	}
	var payload struct {
		Routes []model.AlternativeRoute `json:"routes"`
	}
	if err := c.getJSON(ctx, "routes/alternatives", query, &payload); err != nil {
		return nil, fmt.Errorf("fetch alternatives %s->%s: %w", origin, destination, err)
	}
	return payload.Routes, nil
}

// UpdateRoute moves a shipment onto a new route.
func (c *TransportClient) UpdateRoute(ctx context.Context, shipmentID, routeID string) error {
	body := map[string]any{
		"route_id":   routeID,
		"updated_by": c.agentName,
		"reason":     "route_optimization",
	}
	if err := c.putJSON(ctx, fmt.Sprintf("shipments/%s/route", shipmentID), body, nil); err != nil {
		return fmt.Errorf("update route for %s: %w", shipmentID, err)
	}
	c.logger.WithFields(logrus.Fields{
		"shipment": shipmentID,
		"route":    routeID,
	}).Info("shipment route updated")
	return nil
}

// UpdateSchedule sets a shipment's arrival estimate and delivery
// window.
func (c *TransportClient) UpdateSchedule(ctx context.Context, shipmentID string, eta, windowStart, windowEnd time.Time) error {
	body := map[string]any{
		"estimated_arrival":     eta.Format(time.RFC3339),
		"delivery_window_start": windowStart.Format(time.RFC3339),
		"delivery_window_end":   windowEnd.Format(time.RFC3339),
		"updated_by":            c.agentName,
		"reason":                "schedule_optimization",
	}
	if err := c.putJSON(ctx, fmt.Sprintf("shipments/%s/schedule", shipmentID), body, nil); err != nil {
		return fmt.Errorf("update schedule for %s: %w", shipmentID, err)
	}
	return nil
}

// CreateShipment books a new shipment and returns its id.
func (c *TransportClient) CreateShipment(ctx context.Context, origin, destination string, manifest []model.ManifestLine, priority int) (string, error) {
	body := map[string]any{
		"origin":       origin,
		"destination":  destination,
		"items":        manifest,
		"priority":     priority,
		"requested_by": c.agentName,
	}
	var resp struct {
		ShipmentID string `json:"shipment_id"`
	}
	if err := c.postJSON(ctx, "shipments", body, &resp); err != nil {
		return "", fmt.Errorf("create shipment %s->%s: %w", origin, destination, err)
	}
	if resp.ShipmentID == "" {
		return "", fmt.Errorf("create shipment %s->%s: no shipment_id in response", origin, destination)
	}
	return resp.ShipmentID, nil
}

// CancelShipment cancels a shipment with a reason for the audit trail.
func (c *TransportClient) CancelShipment(ctx context.Context, shipmentID, reason string) error {
	body := map[string]any{
		"reason":       reason,
		"cancelled_by": c.agentName,
	}
	if err := c.postJSON(ctx, fmt.Sprintf("shipments/%s/cancel", shipmentID), body, nil); err != nil {
		return fmt.Errorf("cancel shipment %s: %w", shipmentID, err)
	}
	return nil
}
