package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reliefops/logistics-agent/internal/events"
	"github.com/reliefops/logistics-agent/internal/model"
	"github.com/reliefops/logistics-agent/internal/notify"
)

// runDecisions executes decisions in the order the engine emitted
// them. A failed decision is counted and announced but never stops the
// ones behind it.
func (a *Agent) runDecisions(ctx context.Context, decisions []model.Decision, now time.Time) {
	for i := range decisions {
		d := &decisions[i]

		id, err := model.NewDecisionID()
		if err != nil {
			a.logger.WithError(err).Error("decision id generation failed")
			continue
		}
		d.ID = id
		d.CreatedAt = now

		a.logger.WithFields(logrus.Fields{
			"decision_id": d.ID,
			"type":        string(d.Type),
		}).Info("executing decision")
		a.bus.Publish(events.TypeDecisionEmitted, decisionEventData(*d))

		if err := a.executeDecision(ctx, *d); err != nil {
			a.metrics.ExecutionFailures++
			a.logger.WithFields(logrus.Fields{
				"decision_id": d.ID,
				"type":        string(d.Type),
			}).WithError(err).Error("decision execution failed")

			data := decisionEventData(*d)
			data["error"] = err.Error()
			a.bus.Publish(events.TypeDecisionFailed, data)
			a.notifyExecutionFailure(ctx, *d, err)
			continue
		}

		a.metrics.Decisions[string(d.Type)]++
		a.bus.Publish(events.TypeDecisionExecuted, decisionEventData(*d))
		if a.stream != nil {
			_ = a.stream.PublishDecision(ctx, *d)
		}
	}
}

func (a *Agent) executeDecision(ctx context.Context, d model.Decision) error {
	switch d.Type {
	case model.DecisionInventoryTransfer:
		return a.executeTransfer(ctx, d)
	case model.DecisionReroute:
		return a.executeReroute(ctx, d)
	case model.DecisionRouteOptimization:
		return a.executeOptimization(ctx, d)
	case model.DecisionScheduleAdjustment:
		return a.executeAdjustment(ctx, d)
	default:
		return fmt.Errorf("unknown decision type %q", d.Type)
	}
}

func (a *Agent) executeTransfer(ctx context.Context, d model.Decision) error {
	p := d.Transfer
	if p == nil {
		return fmt.Errorf("decision %s has no transfer plan", d.ID)
	}

	transferID, err := a.inventory.CreateTransfer(ctx, p.Source, p.Destination, p.Items)
	if err != nil {
		return fmt.Errorf("create transfer %s -> %s: %w", p.Source, p.Destination, err)
	}

	a.logger.WithFields(logrus.Fields{
		"transfer_id": transferID,
		"source":      p.Source,
		"destination": p.Destination,
		"items":       len(p.Items),
	}).Info("transfer created")
	a.send(ctx, notify.Notification{
		Severity: notify.SeverityInfo,
		Title:    "Inventory transfer initiated",
		Body:     fmt.Sprintf("Transfer %s: %s -> %s (%s)", transferID, p.Source, p.Destination, p.Reason),
		Fields: map[string]any{
			"transfer_id": transferID,
			"source":      p.Source,
			"destination": p.Destination,
			"reason":      p.Reason,
			"priority":    p.Priority,
		},
	})
	return nil
}

func (a *Agent) executeReroute(ctx context.Context, d model.Decision) error {
	p := d.Reroute
	if p == nil {
		return fmt.Errorf("decision %s has no reroute plan", d.ID)
	}

	sp, ok := a.shipments[p.ShipmentID]
	if !ok {
		return fmt.Errorf("shipment %s is no longer active", p.ShipmentID)
	}
	if err := model.ValidateShipmentTransition(sp.Status, model.ShipmentRerouting); err != nil {
		return fmt.Errorf("shipment %s: %w", p.ShipmentID, err)
	}

	if err := a.transport.UpdateRoute(ctx, p.ShipmentID, p.NewRoute); err != nil {
		return fmt.Errorf("update route for %s: %w", p.ShipmentID, err)
	}

	eta := p.NewETA
	sp.RouteID = p.NewRoute
	sp.Status = model.ShipmentRerouting
	sp.ETA = &eta
	a.shipments[p.ShipmentID] = sp

	a.logger.WithFields(logrus.Fields{
		"shipment_id": p.ShipmentID,
		"old_route":   p.OldRoute,
		"new_route":   p.NewRoute,
		"reason":      p.Reason,
	}).Info("shipment rerouted")
	a.send(ctx, notify.Notification{
		Severity: notify.SeverityInfo,
		Title:    "Shipment rerouted",
		Body:     fmt.Sprintf("Shipment %s rerouted due to %s", p.ShipmentID, p.Reason),
		Fields: map[string]any{
			"shipment_id": p.ShipmentID,
			"old_route":   p.OldRoute,
			"new_route":   p.NewRoute,
			"new_eta":     p.NewETA.Format(time.RFC3339),
		},
	})
	return nil
}

func (a *Agent) executeOptimization(ctx context.Context, d model.Decision) error {
	p := d.Optimization
	if p == nil {
		return fmt.Errorf("decision %s has no optimization plan", d.ID)
	}

	applied := 0
	for _, shipmentID := range p.ShipmentIDs {
		routeID, ok := p.Routes[shipmentID]
		if !ok {
			continue
		}
		if err := a.transport.UpdateRoute(ctx, shipmentID, routeID); err != nil {
			a.logger.WithFields(logrus.Fields{
				"shipment_id": shipmentID,
				"route_id":    routeID,
			}).WithError(err).Warn("optimized route not applied")
			continue
		}
		if sp, ok := a.shipments[shipmentID]; ok {
			sp.RouteID = routeID
			if eta, ok := p.NewETAs[shipmentID]; ok {
				e := eta
				sp.ETA = &e
			}
			a.shipments[shipmentID] = sp
		}
		applied++
	}
	if applied == 0 && len(p.ShipmentIDs) > 0 {
		return fmt.Errorf("no routes applied in region %s", p.Region)
	}

	a.logger.WithFields(logrus.Fields{
		"region":  p.Region,
		"applied": applied,
		"total":   len(p.ShipmentIDs),
	}).Info("routes optimized")
	a.send(ctx, notify.Notification{
		Severity: notify.SeverityInfo,
		Title:    "Routes optimized",
		Body:     fmt.Sprintf("Routes optimized for %d/%d shipments in %s", applied, len(p.ShipmentIDs), p.Region),
		Fields: map[string]any{
			"region":      p.Region,
			"applied":     applied,
			"total":       len(p.ShipmentIDs),
			"fuel_liters": p.Savings.FuelLiters,
			"cost_usd":    p.Savings.CostUSD.String(),
		},
	})
	return nil
}

func (a *Agent) executeAdjustment(ctx context.Context, d model.Decision) error {
	p := d.Adjustment
	if p == nil {
		return fmt.Errorf("decision %s has no schedule plan", d.ID)
	}

	applied := 0
	for _, slot := range p.Slots {
		if err := a.transport.UpdateSchedule(ctx, slot.ShipmentID, slot.ETA, slot.WindowStart, slot.WindowEnd); err != nil {
			a.logger.WithField("shipment_id", slot.ShipmentID).WithError(err).Warn("schedule slot not applied")
			continue
		}
		if sp, ok := a.shipments[slot.ShipmentID]; ok {
			eta := slot.ETA
			sp.ETA = &eta
			a.shipments[slot.ShipmentID] = sp
		}
		applied++
	}
	if applied == 0 && len(p.Slots) > 0 {
		return fmt.Errorf("no schedule slots applied (%s)", p.Reason)
	}

	a.logger.WithFields(logrus.Fields{
		"applied": applied,
		"total":   len(p.Slots),
		"reason":  p.Reason,
	}).Info("schedules adjusted")
	a.send(ctx, notify.Notification{
		Severity: notify.SeverityInfo,
		Title:    "Schedules adjusted",
		Body:     fmt.Sprintf("Delivery schedules adjusted for %d/%d shipments", applied, len(p.Slots)),
		Fields: map[string]any{
			"applied": applied,
			"total":   len(p.Slots),
			"reason":  p.Reason,
		},
	})
	return nil
}

// notifyExecutionFailure escalates a failed reroute, since the
// shipment behind it is already disrupted or delayed; other decision
// types can wait for the next cycle.
func (a *Agent) notifyExecutionFailure(ctx context.Context, d model.Decision, err error) {
	severity := notify.SeverityWarning
	if d.Type == model.DecisionReroute {
		severity = notify.SeverityCritical
	}
	a.send(ctx, notify.Notification{
		Severity: severity,
		Title:    "Decision execution failed",
		Body:     fmt.Sprintf("%s %s: %v", d.Type, d.ID, err),
		Fields: map[string]any{
			"decision_id": d.ID,
			"type":        string(d.Type),
		},
	})
}

// decisionEventData flattens a decision into primitive journal fields.
func decisionEventData(d model.Decision) map[string]any {
	data := map[string]any{
		"decision_id": d.ID,
		"type":        string(d.Type),
	}
	switch {
	case d.Transfer != nil:
		data["source"] = d.Transfer.Source
		data["destination"] = d.Transfer.Destination
		data["priority"] = d.Transfer.Priority
		data["reason"] = d.Transfer.Reason
	case d.Reroute != nil:
		data["shipment_id"] = d.Reroute.ShipmentID
		data["old_route"] = d.Reroute.OldRoute
		data["new_route"] = d.Reroute.NewRoute
		data["reason"] = d.Reroute.Reason
	case d.Optimization != nil:
		data["region"] = d.Optimization.Region
		data["shipments"] = len(d.Optimization.ShipmentIDs)
	case d.Adjustment != nil:
		data["shipments"] = len(d.Adjustment.ShipmentIDs)
		data["reason"] = d.Adjustment.Reason
	}
	return data
}
