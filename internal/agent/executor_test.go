package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"

	"github.com/reliefops/logistics-agent/internal/config"
	"github.com/reliefops/logistics-agent/internal/events"
	"github.com/reliefops/logistics-agent/internal/model"
	"github.com/reliefops/logistics-agent/internal/notify"
	"github.com/reliefops/logistics-agent/internal/routing"
)

type transferCall struct {
	source      string
	destination string
	items       []model.ManifestLine
}

type quantityCall struct {
	warehouseID string
	itemID      string
	quantity    int
	reason      string
}

type fakeInventory struct {
	warehouses    map[string]model.Warehouse
	warehousesErr error
	transfers     []transferCall
	transferErr   error
	quantities    []quantityCall
	quantityErr   error
}

func (f *fakeInventory) Warehouses(context.Context) (map[string]model.Warehouse, error) {
	if f.warehousesErr != nil {
		return nil, f.warehousesErr
	}
	return f.warehouses, nil
}

func (f *fakeInventory) CreateTransfer(_ context.Context, source, destination string, items []model.ManifestLine) (string, error) {
	if f.transferErr != nil {
		return "", f.transferErr
	}
	f.transfers = append(f.transfers, transferCall{source: source, destination: destination, items: items})
	return fmt.Sprintf("tr_%04d", len(f.transfers)), nil
}

func (f *fakeInventory) UpdateItemQuantity(_ context.Context, warehouseID, itemID string, quantity int, reason string) error {
	if f.quantityErr != nil {
		return f.quantityErr
	}
	f.quantities = append(f.quantities, quantityCall{warehouseID: warehouseID, itemID: itemID, quantity: quantity, reason: reason})
	return nil
}

type routeCall struct {
	shipmentID string
	routeID    string
}

type scheduleCall struct {
	shipmentID  string
	eta         time.Time
	windowStart time.Time
	windowEnd   time.Time
}

type fakeTransport struct {
	shipments    map[string]model.Shipment
	shipmentsErr error
	routeCalls   []routeCall
	failRoutes   map[string]error
	schedules    []scheduleCall
	scheduleErr  error
}

func (f *fakeTransport) ActiveShipments(context.Context) (map[string]model.Shipment, error) {
	if f.shipmentsErr != nil {
		return nil, f.shipmentsErr
	}
	out := make(map[string]model.Shipment, len(f.shipments))
	for id, sp := range f.shipments {
		out[id] = sp
	}
	return out, nil
}

func (f *fakeTransport) UpdateRoute(_ context.Context, shipmentID, routeID string) error {
	if err := f.failRoutes[shipmentID]; err != nil {
		return err
	}
	f.routeCalls = append(f.routeCalls, routeCall{shipmentID: shipmentID, routeID: routeID})
	return nil
}

func (f *fakeTransport) UpdateSchedule(_ context.Context, shipmentID string, eta, windowStart, windowEnd time.Time) error {
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.schedules = append(f.schedules, scheduleCall{shipmentID: shipmentID, eta: eta, windowStart: windowStart, windowEnd: windowEnd})
	return nil
}

type fakeWeather struct {
	weather map[string][]model.WeatherSnapshot
	road    map[string][]model.RoadSnapshot
	err     error
}

func (f *fakeWeather) Conditions(_ context.Context, routeID string) ([]model.WeatherSnapshot, []model.RoadSnapshot, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.weather[routeID], f.road[routeID], nil
}

type fakeRouting struct {
	alts    []model.AlternativeRoute
	altErr  error
	plan    model.OptimizedPlan
	planErr error
}

func (f *fakeRouting) AlternativeRoutes(context.Context, string, string, string) ([]model.AlternativeRoute, error) {
	return f.alts, f.altErr
}

func (f *fakeRouting) OptimizedPlan(context.Context, []model.Shipment, map[string]model.RouteCondition) (model.OptimizedPlan, error) {
	if f.planErr != nil {
		return model.OptimizedPlan{}, f.planErr
	}
	return f.plan, nil
}

type fakeStream struct {
	decisions []model.Decision
}

func (f *fakeStream) PublishDecision(_ context.Context, d model.Decision) error {
	f.decisions = append(f.decisions, d)
	return nil
}

// recordingChannel captures dispatched notifications for assertions.
type recordingChannel struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Send(_ context.Context, n notify.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *recordingChannel) byTitle(title string) []notify.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notify.Notification
	for _, n := range c.sent {
		if n.Title == title {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	agent     *Agent
	inventory *fakeInventory
	transport *fakeTransport
	weather   *fakeWeather
	notes     *recordingChannel
	bus       *events.Bus
	stream    *fakeStream
	routing   *fakeRouting
}

func newHarness(t *testing.T, clock clockz.Clock) *harness {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	inv := &fakeInventory{warehouses: map[string]model.Warehouse{}}
	tr := &fakeTransport{shipments: map[string]model.Shipment{}, failRoutes: map[string]error{}}
	we := &fakeWeather{weather: map[string][]model.WeatherSnapshot{}, road: map[string][]model.RoadSnapshot{}}
	rt := &fakeRouting{}
	notes := &recordingChannel{}
	dispatcher := notify.NewDispatcher(logger)
	dispatcher.Register(notes, notify.SeverityInfo)
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)
	stream := &fakeStream{}

	a, err := New(Options{
		Config:    config.Default(),
		Logger:    logger,
		Inventory: inv,
		Transport: tr,
		Weather:   we,
		Routing:   rt,
		Distances: routing.NewStaticDistances(nil),
		Notifier:  dispatcher,
		Bus:       bus,
		Stream:    stream,
		Clock:     clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{agent: a, inventory: inv, transport: tr, weather: we, notes: notes, bus: bus, stream: stream, routing: rt}
}

func TestRunDecisions_Transfer(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)

	d := model.Decision{
		Type: model.DecisionInventoryTransfer,
		Transfer: &model.TransferPlan{
			Source:      "wh_north",
			Destination: "wh_south",
			Items:       []model.ManifestLine{{ItemID: "water", Quantity: 130}},
			Reason:      "inventory_below_threshold",
			Priority:    5,
		},
	}
	h.agent.runDecisions(context.Background(), []model.Decision{d}, clock.Now())

	if len(h.inventory.transfers) != 1 {
		t.Fatalf("expected 1 transfer call, got %d", len(h.inventory.transfers))
	}
	call := h.inventory.transfers[0]
	if call.source != "wh_north" || call.destination != "wh_south" {
		t.Errorf("transfer went %s -> %s", call.source, call.destination)
	}
	if len(call.items) != 1 || call.items[0].Quantity != 130 {
		t.Errorf("unexpected manifest: %+v", call.items)
	}

	if got := h.agent.metrics.Decisions["inventory_transfer"]; got != 1 {
		t.Errorf("decision counter = %d, want 1", got)
	}
	if len(h.stream.decisions) != 1 {
		t.Fatalf("expected 1 streamed decision, got %d", len(h.stream.decisions))
	}
	if !strings.HasPrefix(h.stream.decisions[0].ID, "dec_") {
		t.Errorf("streamed decision id %q has no dec_ prefix", h.stream.decisions[0].ID)
	}

	notes := h.notes.byTitle("Inventory transfer initiated")
	if len(notes) != 1 {
		t.Fatalf("expected 1 transfer notification, got %d", len(notes))
	}
	if notes[0].Severity != notify.SeverityInfo {
		t.Errorf("severity = %s, want info", notes[0].Severity)
	}
}

func TestRunDecisions_FailureDoesNotStopRest(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)
	h.inventory.transferErr = errors.New("inventory system offline")

	now := clock.Now()
	decisions := []model.Decision{
		{
			Type: model.DecisionInventoryTransfer,
			Transfer: &model.TransferPlan{
				Source:      "wh_north",
				Destination: "wh_south",
				Items:       []model.ManifestLine{{ItemID: "water", Quantity: 50}},
			},
		},
		{
			Type: model.DecisionScheduleAdjustment,
			Adjustment: &model.SchedulePlan{
				ShipmentIDs: []string{"sp_1"},
				Slots: []model.ScheduleSlot{{
					ShipmentID:  "sp_1",
					ETA:         now.Add(4 * time.Hour),
					WindowStart: now.Add(210 * time.Minute),
					WindowEnd:   now.Add(270 * time.Minute),
				}},
				Reason: "optimize_receiving_operations",
			},
		},
	}
	h.agent.runDecisions(context.Background(), decisions, now)

	if h.agent.metrics.ExecutionFailures != 1 {
		t.Errorf("execution failures = %d, want 1", h.agent.metrics.ExecutionFailures)
	}
	if got := h.agent.metrics.Decisions["schedule_adjustment"]; got != 1 {
		t.Errorf("adjustment counter = %d, want 1", got)
	}
	if len(h.transport.schedules) != 1 {
		t.Errorf("expected the adjustment to still run, got %d schedule calls", len(h.transport.schedules))
	}
	if len(h.stream.decisions) != 1 {
		t.Errorf("only executed decisions should stream, got %d", len(h.stream.decisions))
	}

	failures := h.notes.byTitle("Decision execution failed")
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure notification, got %d", len(failures))
	}
	if failures[0].Severity != notify.SeverityWarning {
		t.Errorf("transfer failure severity = %s, want warning", failures[0].Severity)
	}
}

func TestRunDecisions_EmitsLifecycleEvents(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)

	got := make(chan events.Event, 8)
	unsubscribe := h.bus.Subscribe(func(e events.Event) { got <- e },
		events.TypeDecisionEmitted, events.TypeDecisionExecuted, events.TypeDecisionFailed)
	defer unsubscribe()

	decisions := []model.Decision{
		{
			Type: model.DecisionInventoryTransfer,
			Transfer: &model.TransferPlan{
				Source:      "wh_north",
				Destination: "wh_south",
				Items:       []model.ManifestLine{{ItemID: "water", Quantity: 10}},
			},
		},
		{
			// No such shipment in the active set, so execution fails.
			Type:    model.DecisionReroute,
			Reroute: &model.ReroutePlan{ShipmentID: "sp_missing", OldRoute: "route_1", NewRoute: "route_2"},
		},
	}
	h.agent.runDecisions(context.Background(), decisions, clock.Now())

	counts := map[events.Type]int{}
	var failed events.Event
	deadline := time.After(2 * time.Second)
	for i := 0; i < 4; i++ {
		select {
		case e := <-got:
			counts[e.Type]++
			if e.Type == events.TypeDecisionFailed {
				failed = e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events, have %v", counts)
		}
	}

	if counts[events.TypeDecisionEmitted] != 2 {
		t.Errorf("emitted events = %d, want 2", counts[events.TypeDecisionEmitted])
	}
	if counts[events.TypeDecisionExecuted] != 1 {
		t.Errorf("executed events = %d, want 1", counts[events.TypeDecisionExecuted])
	}
	if counts[events.TypeDecisionFailed] != 1 {
		t.Errorf("failed events = %d, want 1", counts[events.TypeDecisionFailed])
	}

	if failed.Data["shipment_id"] != "sp_missing" {
		t.Errorf("failed event shipment_id = %v", failed.Data["shipment_id"])
	}
	if _, ok := failed.Data["error"].(string); !ok {
		t.Errorf("failed event carries no error string: %v", failed.Data)
	}

	// A failed reroute leaves the shipment stuck, so it escalates.
	failures := h.notes.byTitle("Decision execution failed")
	if len(failures) != 1 || failures[0].Severity != notify.SeverityCritical {
		t.Fatalf("expected 1 critical failure notification, got %+v", failures)
	}
}

func TestExecuteReroute(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)

	eta := clock.Now().Add(6 * time.Hour)
	h.agent.shipments["sp_1"] = model.Shipment{
		ID:          "sp_1",
		Origin:      "wh_north",
		Destination: "wh_south",
		Status:      model.ShipmentInTransit,
		Priority:    7,
		RouteID:     "route_1",
		ETA:         &eta,
	}

	newETA := clock.Now().Add(9 * time.Hour)
	err := h.agent.executeDecision(context.Background(), model.Decision{
		ID:   "dec_test",
		Type: model.DecisionReroute,
		Reroute: &model.ReroutePlan{
			ShipmentID: "sp_1",
			OldRoute:   "route_1",
			NewRoute:   "route_2",
			Reason:     "route_disruption",
			NewETA:     newETA,
		},
	})
	if err != nil {
		t.Fatalf("executeDecision: %v", err)
	}

	if len(h.transport.routeCalls) != 1 {
		t.Fatalf("expected 1 route update, got %d", len(h.transport.routeCalls))
	}
	if call := h.transport.routeCalls[0]; call.shipmentID != "sp_1" || call.routeID != "route_2" {
		t.Errorf("route update = %+v", call)
	}

	sp := h.agent.shipments["sp_1"]
	if sp.Status != model.ShipmentRerouting {
		t.Errorf("status = %s, want rerouting", sp.Status)
	}
	if sp.RouteID != "route_2" {
		t.Errorf("route = %s, want route_2", sp.RouteID)
	}
	if sp.ETA == nil || !sp.ETA.Equal(newETA) {
		t.Errorf("eta = %v, want %v", sp.ETA, newETA)
	}

	notes := h.notes.byTitle("Shipment rerouted")
	if len(notes) != 1 {
		t.Fatalf("expected 1 reroute notification, got %d", len(notes))
	}
	if notes[0].Fields["new_route"] != "route_2" {
		t.Errorf("notification new_route = %v", notes[0].Fields["new_route"])
	}
	if !strings.Contains(notes[0].Body, "route_disruption") {
		t.Errorf("notification body %q does not carry the reason", notes[0].Body)
	}
}

func TestExecuteReroute_InvalidTransition(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)

	// A pending shipment has not left yet; rerouting it is not a legal move.
	h.agent.shipments["sp_2"] = model.Shipment{
		ID:     "sp_2",
		Status: model.ShipmentPending,
	}

	err := h.agent.executeDecision(context.Background(), model.Decision{
		Type:    model.DecisionReroute,
		Reroute: &model.ReroutePlan{ShipmentID: "sp_2", OldRoute: "route_1", NewRoute: "route_2"},
	})
	if err == nil {
		t.Fatal("expected an error for pending -> rerouting")
	}
	if len(h.transport.routeCalls) != 0 {
		t.Errorf("transport should not be called on an invalid transition, got %d calls", len(h.transport.routeCalls))
	}
	if h.agent.shipments["sp_2"].Status != model.ShipmentPending {
		t.Errorf("shipment status changed to %s", h.agent.shipments["sp_2"].Status)
	}
}

func TestExecuteReroute_ShipmentGone(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)

	err := h.agent.executeDecision(context.Background(), model.Decision{
		Type:    model.DecisionReroute,
		Reroute: &model.ReroutePlan{ShipmentID: "sp_vanished", NewRoute: "route_2"},
	})
	if err == nil {
		t.Fatal("expected an error for an unknown shipment")
	}
	if len(h.transport.routeCalls) != 0 {
		t.Errorf("transport called %d times for a vanished shipment", len(h.transport.routeCalls))
	}
}

func TestExecuteOptimization_PartialApply(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)

	etaA := clock.Now().Add(3 * time.Hour)
	etaB := clock.Now().Add(5 * time.Hour)
	h.agent.shipments["sp_a"] = model.Shipment{ID: "sp_a", Status: model.ShipmentInTransit, RouteID: "route_1", ETA: &etaA}
	h.agent.shipments["sp_b"] = model.Shipment{ID: "sp_b", Status: model.ShipmentInTransit, RouteID: "route_2", ETA: &etaB}
	h.transport.failRoutes["sp_b"] = errors.New("transport rejected route")

	newETA := clock.Now().Add(150 * time.Minute)
	err := h.agent.executeDecision(context.Background(), model.Decision{
		Type: model.DecisionRouteOptimization,
		Optimization: &model.OptimizationPlan{
			Region:      "south",
			ShipmentIDs: []string{"sp_a", "sp_b"},
			Routes:      map[string]string{"sp_a": "route_9", "sp_b": "route_9"},
			NewETAs:     map[string]time.Time{"sp_a": newETA},
		},
	})
	if err != nil {
		t.Fatalf("partial apply should succeed: %v", err)
	}

	if len(h.transport.routeCalls) != 1 {
		t.Fatalf("expected 1 applied route, got %d", len(h.transport.routeCalls))
	}
	a := h.agent.shipments["sp_a"]
	if a.RouteID != "route_9" {
		t.Errorf("sp_a route = %s, want route_9", a.RouteID)
	}
	if a.ETA == nil || !a.ETA.Equal(newETA) {
		t.Errorf("sp_a eta = %v, want %v", a.ETA, newETA)
	}
	if b := h.agent.shipments["sp_b"]; b.RouteID != "route_2" {
		t.Errorf("sp_b should keep its route, got %s", b.RouteID)
	}

	notes := h.notes.byTitle("Routes optimized")
	if len(notes) != 1 {
		t.Fatalf("expected 1 optimization notification, got %d", len(notes))
	}
	if !strings.Contains(notes[0].Body, "1/2") {
		t.Errorf("body %q should report 1/2 shipments", notes[0].Body)
	}
}

func TestExecuteOptimization_NothingApplied(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)
	h.transport.failRoutes["sp_a"] = errors.New("rejected")
	h.transport.failRoutes["sp_b"] = errors.New("rejected")

	err := h.agent.executeDecision(context.Background(), model.Decision{
		Type: model.DecisionRouteOptimization,
		Optimization: &model.OptimizationPlan{
			Region:      "south",
			ShipmentIDs: []string{"sp_a", "sp_b"},
			Routes:      map[string]string{"sp_a": "route_9", "sp_b": "route_9"},
		},
	})
	if err == nil {
		t.Fatal("expected an error when no route applies")
	}
	if notes := h.notes.byTitle("Routes optimized"); len(notes) != 0 {
		t.Errorf("no notification expected, got %d", len(notes))
	}
}

func TestExecuteAdjustment(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)

	base := clock.Now().Add(24 * time.Hour)
	h.agent.shipments["sp_1"] = model.Shipment{ID: "sp_1", Status: model.ShipmentInTransit}
	h.agent.shipments["sp_2"] = model.Shipment{ID: "sp_2", Status: model.ShipmentInTransit}

	slots := []model.ScheduleSlot{
		{ShipmentID: "sp_1", ETA: base, WindowStart: base.Add(-30 * time.Minute), WindowEnd: base.Add(30 * time.Minute)},
		{ShipmentID: "sp_2", ETA: base.Add(2 * time.Hour), WindowStart: base.Add(90 * time.Minute), WindowEnd: base.Add(150 * time.Minute)},
	}
	err := h.agent.executeDecision(context.Background(), model.Decision{
		Type: model.DecisionScheduleAdjustment,
		Adjustment: &model.SchedulePlan{
			ShipmentIDs: []string{"sp_1", "sp_2"},
			Slots:       slots,
			Reason:      "optimize_receiving_operations",
		},
	})
	if err != nil {
		t.Fatalf("executeDecision: %v", err)
	}

	if len(h.transport.schedules) != 2 {
		t.Fatalf("expected 2 schedule updates, got %d", len(h.transport.schedules))
	}
	first := h.transport.schedules[0]
	if first.shipmentID != "sp_1" || !first.eta.Equal(base) || !first.windowEnd.Equal(base.Add(30*time.Minute)) {
		t.Errorf("first schedule call = %+v", first)
	}
	if sp := h.agent.shipments["sp_2"]; sp.ETA == nil || !sp.ETA.Equal(base.Add(2*time.Hour)) {
		t.Errorf("sp_2 eta not updated: %v", sp.ETA)
	}

	notes := h.notes.byTitle("Schedules adjusted")
	if len(notes) != 1 {
		t.Fatalf("expected 1 adjustment notification, got %d", len(notes))
	}
	if !strings.Contains(notes[0].Body, "2/2") {
		t.Errorf("body %q should report 2/2 shipments", notes[0].Body)
	}
}

func TestExecuteAdjustment_AllSlotsFail(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)
	h.transport.scheduleErr = errors.New("scheduling system offline")

	err := h.agent.executeDecision(context.Background(), model.Decision{
		Type: model.DecisionScheduleAdjustment,
		Adjustment: &model.SchedulePlan{
			ShipmentIDs: []string{"sp_1"},
			Slots:       []model.ScheduleSlot{{ShipmentID: "sp_1", ETA: clock.Now().Add(time.Hour)}},
			Reason:      "optimize_receiving_operations",
		},
	})
	if err == nil {
		t.Fatal("expected an error when every slot fails")
	}
}

func TestExecuteDecision_UnknownType(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := newHarness(t, clock)

	err := h.agent.executeDecision(context.Background(), model.Decision{Type: "teleport"})
	if err == nil || !strings.Contains(err.Error(), "unknown decision type") {
		t.Fatalf("err = %v, want unknown decision type", err)
	}
}

func TestDecisionEventData(t *testing.T) {
	d := model.Decision{
		ID:   "dec_1",
		Type: model.DecisionReroute,
		Reroute: &model.ReroutePlan{
			ShipmentID: "sp_9",
			OldRoute:   "route_1",
			NewRoute:   "route_2",
			Reason:     "significant_delay",
		},
	}
	data := decisionEventData(d)
	if data["decision_id"] != "dec_1" || data["type"] != "reroute" {
		t.Errorf("identity fields wrong: %v", data)
	}
	if data["shipment_id"] != "sp_9" || data["new_route"] != "route_2" {
		t.Errorf("reroute fields wrong: %v", data)
	}
}
