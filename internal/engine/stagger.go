package engine

import (
	"sort"
	"time"

	"github.com/reliefops/logistics-agent/internal/model"
)

// Receiving crews can turn around one arrival every couple of hours, and
// docks open at 09:00. Arrivals are spread on that grid with a small
// window either side.
const (
	staggerInterval   = 2 * time.Hour
	deliverySlack     = 30 * time.Minute
	receivingDayStart = 9
)

// StaggerSchedules spreads out shipments that would land at the same
// destination on the same day. Each colliding group is re-slotted at
// two-hour offsets from a base time, highest priority first, so urgent
// cargo keeps the earliest slot. Shipments without an ETA cannot
// collide and are ignored.
func StaggerSchedules(shipments map[string]model.Shipment) []model.Decision {
	type groupKey struct {
		destination string
		date        string
	}

	ids := make([]string, 0, len(shipments))
	for id := range shipments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	groups := make(map[groupKey][]model.Shipment)
	var keys []groupKey
	for _, id := range ids {
		sp := shipments[id]
		if !sp.Active() || sp.ETA == nil {
			continue
		}
		key := groupKey{destination: sp.Destination, date: sp.ETA.Format("2006-01-02")}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], sp)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].destination != keys[j].destination {
			return keys[i].destination < keys[j].destination
		}
		return keys[i].date < keys[j].date
	})

	var decisions []model.Decision
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		// Urgent shipments take the earliest slots.
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Priority > group[j].Priority
		})

		earliest := *group[0].ETA
		for _, sp := range group[1:] {
			if sp.ETA.Before(earliest) {
				earliest = *sp.ETA
			}
		}
		base := time.Date(earliest.Year(), earliest.Month(), earliest.Day(),
			receivingDayStart, 0, 0, 0, earliest.Location())
		if earliest.After(base) {
			base = earliest
		}

		shipmentIDs := make([]string, len(group))
		slots := make([]model.ScheduleSlot, len(group))
		for i, sp := range group {
			arrival := base.Add(time.Duration(i) * staggerInterval)
			shipmentIDs[i] = sp.ID
			slots[i] = model.ScheduleSlot{
				ShipmentID:  sp.ID,
				ETA:         arrival,
				WindowStart: arrival.Add(-deliverySlack),
				WindowEnd:   arrival.Add(deliverySlack),
			}
		}
		decisions = append(decisions, model.Decision{
			Type: model.DecisionScheduleAdjustment,
			Adjustment: &model.SchedulePlan{
				ShipmentIDs: shipmentIDs,
				Slots:       slots,
				Reason:      ReasonReceivingStagger,
			},
		})
	}
	return decisions
}
