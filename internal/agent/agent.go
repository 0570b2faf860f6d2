// Package agent runs the coordination loop: fetch state from the
// upstream systems, derive alerts and issues, ask the engine for
// decisions, execute them, and tell stakeholders what happened.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"
	"golang.org/x/sync/errgroup"

	"github.com/reliefops/logistics-agent/internal/config"
	"github.com/reliefops/logistics-agent/internal/engine"
	"github.com/reliefops/logistics-agent/internal/events"
	"github.com/reliefops/logistics-agent/internal/model"
	"github.com/reliefops/logistics-agent/internal/monitor"
	"github.com/reliefops/logistics-agent/internal/notify"
	"github.com/reliefops/logistics-agent/internal/status"
	"github.com/reliefops/logistics-agent/internal/uds"
)

// InventoryAPI is the slice of the inventory connector the agent drives.
type InventoryAPI interface {
	Warehouses(ctx context.Context) (map[string]model.Warehouse, error)
	CreateTransfer(ctx context.Context, source, destination string, items []model.ManifestLine) (string, error)
	UpdateItemQuantity(ctx context.Context, warehouseID, itemID string, quantity int, reason string) error
}

// TransportAPI is the slice of the transport connector the agent drives.
type TransportAPI interface {
	ActiveShipments(ctx context.Context) (map[string]model.Shipment, error)
	UpdateRoute(ctx context.Context, shipmentID, routeID string) error
	UpdateSchedule(ctx context.Context, shipmentID string, eta, windowStart, windowEnd time.Time) error
}

// WeatherAPI reports conditions along a route.
type WeatherAPI interface {
	Conditions(ctx context.Context, routeID string) ([]model.WeatherSnapshot, []model.RoadSnapshot, error)
}

// DecisionPublisher streams executed decisions to downstream consumers.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, d model.Decision) error
}

// Options carries the agent's collaborators. Stream and Clock are
// optional; everything else is required.
type Options struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Inventory InventoryAPI
	Transport TransportAPI
	Weather   WeatherAPI
	Routing   engine.RoutingOracle
	Distances engine.DistanceOracle
	Notifier  *notify.Dispatcher
	Bus       *events.Bus
	Stream    DecisionPublisher
	Clock     clockz.Clock
}

// Agent is the long-running coordinator. All state mutation happens on
// the loop goroutine; other goroutines observe through the atomically
// swapped status snapshot.
type Agent struct {
	name      string
	logger    *logrus.Logger
	inventory InventoryAPI
	transport TransportAPI
	weather   WeatherAPI
	routing   engine.RoutingOracle
	distances engine.DistanceOracle
	notifier  *notify.Dispatcher
	bus       *events.Bus
	stream    DecisionPublisher
	clock     clockz.Clock

	// Tunables swapped by config reload, read by the loop.
	mu         sync.RWMutex
	params     engine.Params
	thresholds monitor.Thresholds
	intervals  config.IntervalsConfig

	// Loop-owned state.
	warehouses map[string]model.Warehouse
	shipments  map[string]model.Shipment
	conditions map[string]model.RouteCondition

	lastInventory time.Time
	lastShipment  time.Time
	lastWeather   time.Time

	startedAt time.Time
	metrics   *Metrics
	current   atomic.Pointer[status.Agent]
}

// New assembles an agent from its collaborators.
func New(opts Options) (*Agent, error) {
	switch {
	case opts.Config == nil:
		return nil, fmt.Errorf("agent: config is required")
	case opts.Logger == nil:
		return nil, fmt.Errorf("agent: logger is required")
	case opts.Inventory == nil:
		return nil, fmt.Errorf("agent: inventory API is required")
	case opts.Transport == nil:
		return nil, fmt.Errorf("agent: transport API is required")
	case opts.Weather == nil:
		return nil, fmt.Errorf("agent: weather API is required")
	case opts.Routing == nil:
		return nil, fmt.Errorf("agent: routing oracle is required")
	case opts.Distances == nil:
		return nil, fmt.Errorf("agent: distance oracle is required")
	case opts.Notifier == nil:
		return nil, fmt.Errorf("agent: notifier is required")
	case opts.Bus == nil:
		return nil, fmt.Errorf("agent: event bus is required")
	}

	a := &Agent{
		name:       opts.Config.AgentName,
		logger:     opts.Logger,
		inventory:  opts.Inventory,
		transport:  opts.Transport,
		weather:    opts.Weather,
		routing:    opts.Routing,
		distances:  opts.Distances,
		notifier:   opts.Notifier,
		bus:        opts.Bus,
		stream:     opts.Stream,
		clock:      opts.Clock,
		params:     opts.Config.EngineParams(),
		thresholds: opts.Config.MonitorThresholds(),
		intervals:  opts.Config.Intervals,
		warehouses: make(map[string]model.Warehouse),
		shipments:  make(map[string]model.Shipment),
		conditions: make(map[string]model.RouteCondition),
		metrics:    newMetrics(),
	}
	a.startedAt = a.getClock().Now()
	a.publishStatus(a.startedAt)
	return a, nil
}

func (a *Agent) getClock() clockz.Clock {
	if a.clock == nil {
		return clockz.RealClock
	}
	return a.clock
}

// Run executes cycles until the context is cancelled. The first cycle
// starts immediately; later ones follow the main loop interval.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.WithField("agent", a.name).Info("coordination loop starting")
	for {
		a.runCycle(ctx)

		select {
		case <-ctx.Done():
			a.logger.Info("coordination loop stopping")
			return nil
		case <-a.getClock().After(a.mainInterval()):
		}
	}
}

func (a *Agent) mainInterval() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return time.Duration(a.intervals.MainLoopSec) * time.Second
}

func (a *Agent) tunables() (engine.Params, monitor.Thresholds, config.IntervalsConfig) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.params, a.thresholds, a.intervals
}

// ApplyConfig swaps the tunable engine parameters, detection
// thresholds, and check intervals. Identity and connection settings
// need a restart and are deliberately not touched here.
func (a *Agent) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	a.params = cfg.EngineParams()
	a.thresholds = cfg.MonitorThresholds()
	a.intervals = cfg.Intervals
	a.mu.Unlock()

	a.bus.Publish(events.TypeConfigReloaded, map[string]any{
		"reroute_delay_minutes": cfg.Engine.RerouteDelayMinutes,
		"main_loop_sec":         cfg.Intervals.MainLoopSec,
	})
	a.logger.Info("engine parameters re-applied from config")
}

// RegisterHandlers wires the agent's commands onto the status socket.
func (a *Agent) RegisterHandlers(srv *uds.Server) {
	srv.Handle("ping", func(uds.Query) *uds.Reply {
		return uds.Ok(map[string]string{"status": "pong"})
	})
	srv.Handle("status", func(uds.Query) *uds.Reply {
		return uds.Ok(a.Status())
	})
}

// Status returns the snapshot published after the last completed cycle.
func (a *Agent) Status() *status.Agent {
	return a.current.Load()
}

func due(last time.Time, intervalSec int, now time.Time) bool {
	return last.IsZero() || now.Sub(last) >= time.Duration(intervalSec)*time.Second
}

// runCycle is one pass of the coordination loop. Failures inside a
// cycle are logged and notified; they never take the loop down.
func (a *Agent) runCycle(ctx context.Context) {
	now := a.getClock().Now()
	params, thresholds, intervals := a.tunables()

	completed, ok := a.refreshState(ctx)
	if !ok {
		return
	}

	if due(a.lastWeather, intervals.WeatherSec, now) {
		a.lastWeather = now
		a.refreshConditions(ctx, thresholds, now)
	}

	snap := engine.Snapshot{
		Warehouses: a.warehouses,
		Shipments:  a.shipments,
		Conditions: a.conditions,
		TakenAt:    now,
	}.Clone()

	var decisions []model.Decision

	if due(a.lastInventory, intervals.InventorySec, now) {
		a.lastInventory = now
		snap.Alerts = monitor.DetectShortages(snap.Warehouses, now)
		decisions = append(decisions, a.inventoryConcern(ctx, snap, params)...)
	}

	if due(a.lastShipment, intervals.ShipmentSec, now) {
		a.lastShipment = now
		snap.Issues = monitor.DetectDelays(snap.Shipments, now)
		decisions = append(decisions, a.shipmentConcern(ctx, snap, params)...)
	}

	a.runDecisions(ctx, decisions, now)
	a.processCompleted(ctx, completed, now)

	a.metrics.Cycles++
	a.publishStatus(now)
}

// refreshState replaces the local warehouse and shipment mirrors from
// the upstream systems and reports which shipments finished since the
// previous fetch: terminal in the new fetch, or gone from it entirely.
func (a *Agent) refreshState(ctx context.Context) ([]model.Shipment, bool) {
	var (
		warehouses map[string]model.Warehouse
		fetched    map[string]model.Shipment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		warehouses, err = a.inventory.Warehouses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		fetched, err = a.transport.ActiveShipments(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		a.logger.WithError(err).Error("state fetch failed, skipping cycle")
		a.send(ctx, notify.Notification{
			Severity: notify.SeverityWarning,
			Title:    "State fetch failed",
			Body:     err.Error(),
		})
		return nil, false
	}

	var completed []model.Shipment
	for _, id := range sortedShipmentIDs(fetched) {
		if sp := fetched[id]; !sp.Active() {
			completed = append(completed, sp)
		}
	}
	for _, id := range sortedShipmentIDs(a.shipments) {
		if _, ok := fetched[id]; !ok {
			completed = append(completed, a.shipments[id])
		}
	}

	active := make(map[string]model.Shipment, len(fetched))
	for id, sp := range fetched {
		if sp.Active() {
			active[id] = sp
		}
	}

	a.warehouses = warehouses
	a.shipments = active
	return completed, true
}

// refreshConditions re-assesses every route an active shipment is on.
func (a *Agent) refreshConditions(ctx context.Context, th monitor.Thresholds, now time.Time) {
	seen := make(map[string]bool)
	var routeIDs []string
	for _, sp := range a.shipments {
		if sp.RouteID == "" || seen[sp.RouteID] {
			continue
		}
		seen[sp.RouteID] = true
		routeIDs = append(routeIDs, sp.RouteID)
	}
	sort.Strings(routeIDs)

	for _, routeID := range routeIDs {
		weather, road, err := a.weather.Conditions(ctx, routeID)
		if err != nil {
			a.logger.WithField("route_id", routeID).WithError(err).Warn("route condition fetch failed")
			continue
		}

		cond := monitor.AssessRoute(routeID,
			monitor.AggregateWeather(weather), monitor.AggregateRoad(road), th, now)
		a.conditions[routeID] = cond

		if cond.Disrupted {
			a.logger.WithFields(logrus.Fields{
				"route_id": routeID,
				"reason":   cond.Reason,
			}).Warn("route disrupted")
			a.send(ctx, notify.Notification{
				Severity: notify.SeverityCritical,
				Title:    "Route disrupted",
				Body:     fmt.Sprintf("Route %s is currently disrupted (%s)", routeID, cond.Reason),
				Fields: map[string]any{
					"route_id":          routeID,
					"reason":            cond.Reason,
					"est_delay_minutes": monitor.DisruptionDelayMinutes(cond),
				},
			})
		}
	}
}

// inventoryConcern raises shortage alerts and asks the engine for
// replenishment and rebalancing transfers.
func (a *Agent) inventoryConcern(ctx context.Context, snap engine.Snapshot, params engine.Params) []model.Decision {
	a.metrics.Alerts += int64(len(snap.Alerts))
	for _, al := range snap.Alerts {
		a.logger.WithFields(logrus.Fields{
			"warehouse_id": al.WarehouseID,
			"item":         al.ItemName,
			"quantity":     al.Quantity,
			"min":          al.MinThreshold,
		}).Warn("inventory below threshold")
		a.bus.Publish(events.TypeAlertRaised, map[string]any{
			"warehouse_id":  al.WarehouseID,
			"item_id":       al.ItemID,
			"quantity":      al.Quantity,
			"min_threshold": al.MinThreshold,
			"severity":      string(al.Severity),
		})
	}
	a.notifyShortages(ctx, snap.Alerts)

	var decisions []model.Decision
	for _, al := range snap.Alerts {
		if d := engine.PlanReplenishment(al, snap.Warehouses, a.distances, params); d != nil {
			decisions = append(decisions, *d)
		}
	}
	decisions = append(decisions, engine.RebalanceInventory(snap.Warehouses, a.distances, params)...)
	return decisions
}

// shipmentConcern raises delay issues and asks the engine for
// reroutes, consolidations, and receiving staggers.
func (a *Agent) shipmentConcern(ctx context.Context, snap engine.Snapshot, params engine.Params) []model.Decision {
	a.metrics.Issues += int64(len(snap.Issues))
	for _, is := range snap.Issues {
		a.logger.WithFields(logrus.Fields{
			"shipment_id":   is.ShipmentID,
			"delay_minutes": is.DelayMinutes,
			"priority":      is.Priority,
		}).Warn("shipment behind schedule")
		a.bus.Publish(events.TypeIssueRaised, map[string]any{
			"shipment_id":   is.ShipmentID,
			"delay_minutes": is.DelayMinutes,
			"priority":      is.Priority,
			"severity":      string(is.Severity),
		})
	}
	a.notifyDelays(ctx, snap.Issues)

	decisions := engine.SelectReroutes(ctx, snap.Shipments, snap.Issues, snap.Conditions, a.routing, params)
	decisions = append(decisions, engine.OptimizeConsolidation(ctx, snap.Shipments, snap.Conditions, a.routing)...)
	decisions = append(decisions, engine.StaggerSchedules(snap.Shipments)...)
	return decisions
}

// processCompleted settles shipments that reached a terminal status:
// delivered manifests are added to the destination warehouse through
// the inventory system, then the completion is announced.
func (a *Agent) processCompleted(ctx context.Context, completed []model.Shipment, now time.Time) {
	for _, sp := range completed {
		a.logger.WithFields(logrus.Fields{
			"shipment_id": sp.ID,
			"status":      string(sp.Status),
		}).Info("shipment completed")

		if sp.Status == model.ShipmentDelivered {
			a.restockDestination(ctx, sp, now)
		}

		a.bus.Publish(events.TypeShipmentCompleted, map[string]any{
			"shipment_id": sp.ID,
			"status":      string(sp.Status),
			"destination": sp.Destination,
		})
		a.send(ctx, notify.Notification{
			Severity: notify.SeverityInfo,
			Title:    "Shipment completed",
			Body:     fmt.Sprintf("Shipment %s has been %s", sp.ID, sp.Status),
			Fields: map[string]any{
				"shipment_id": sp.ID,
				"origin":      sp.Origin,
				"destination": sp.Destination,
				"status":      string(sp.Status),
			},
		})
	}
}

func (a *Agent) restockDestination(ctx context.Context, sp model.Shipment, now time.Time) {
	wh, ok := a.warehouses[sp.Destination]
	if !ok {
		return
	}
	for _, line := range sp.Manifest {
		item, ok := wh.Items[line.ItemID]
		if !ok {
			continue
		}
		item.Quantity += line.Quantity
		item.UpdatedAt = now
		if err := a.inventory.UpdateItemQuantity(ctx, sp.Destination, line.ItemID, item.Quantity, "shipment_delivered"); err != nil {
			a.logger.WithFields(logrus.Fields{
				"warehouse_id": sp.Destination,
				"item_id":      line.ItemID,
			}).WithError(err).Error("delivered inventory update failed")
			continue
		}
		wh.Items[line.ItemID] = item
		a.logger.WithFields(logrus.Fields{
			"warehouse_id": sp.Destination,
			"item_id":      line.ItemID,
			"added":        line.Quantity,
		}).Info("inventory updated from delivery")
	}
}

func (a *Agent) notifyShortages(ctx context.Context, alerts []model.Alert) {
	var grouped []string
	for _, al := range alerts {
		if al.Severity == model.SeverityHigh {
			a.send(ctx, notify.Notification{
				Severity: notify.SeverityCritical,
				Title:    "Inventory critical",
				Body:     fmt.Sprintf("%s at %s: %d/%d", al.ItemName, al.WarehouseID, al.Quantity, al.MinThreshold),
				Fields: map[string]any{
					"warehouse_id":  al.WarehouseID,
					"item_id":       al.ItemID,
					"quantity":      al.Quantity,
					"min_threshold": al.MinThreshold,
				},
			})
			continue
		}
		grouped = append(grouped, fmt.Sprintf("%s (%d/%d)", al.ItemName, al.Quantity, al.MinThreshold))
	}
	if len(grouped) > 0 {
		a.send(ctx, notify.Notification{
			Severity: notify.SeverityWarning,
			Title:    "Inventory below threshold",
			Body:     fmt.Sprintf("%d items below threshold: %s", len(grouped), strings.Join(grouped, ", ")),
		})
	}
}

func (a *Agent) notifyDelays(ctx context.Context, issues []model.Issue) {
	var grouped []string
	for _, is := range issues {
		if is.Severity == model.SeverityHigh {
			a.send(ctx, notify.Notification{
				Severity: notify.SeverityCritical,
				Title:    "Shipment delayed",
				Body:     fmt.Sprintf("Shipment %s is %d minutes behind schedule (priority %d)", is.ShipmentID, is.DelayMinutes, is.Priority),
				Fields: map[string]any{
					"shipment_id":   is.ShipmentID,
					"delay_minutes": is.DelayMinutes,
					"priority":      is.Priority,
				},
			})
			continue
		}
		grouped = append(grouped, fmt.Sprintf("%s (%dm)", is.ShipmentID, is.DelayMinutes))
	}
	if len(grouped) > 0 {
		a.send(ctx, notify.Notification{
			Severity: notify.SeverityWarning,
			Title:    "Shipments behind schedule",
			Body:     fmt.Sprintf("%d shipments behind schedule: %s", len(grouped), strings.Join(grouped, ", ")),
		})
	}
}

// send dispatches a notification; delivery failures are already logged
// per channel by the dispatcher.
func (a *Agent) send(ctx context.Context, n notify.Notification) {
	_ = a.notifier.Dispatch(ctx, n)
}

func (a *Agent) publishStatus(now time.Time) {
	disrupted := 0
	for _, cond := range a.conditions {
		if cond.Disrupted {
			disrupted++
		}
	}
	a.current.Store(&status.Agent{
		Name:            a.name,
		StartedAt:       a.startedAt,
		UptimeSeconds:   int64(now.Sub(a.startedAt).Seconds()),
		LastCycleAt:     now,
		Warehouses:      len(a.warehouses),
		ActiveShipments: len(a.shipments),
		DisruptedRoutes: disrupted,
		Metrics:         a.metrics.snapshot(),
	})
}

func sortedShipmentIDs(shipments map[string]model.Shipment) []string {
	ids := make([]string, 0, len(shipments))
	for id := range shipments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
