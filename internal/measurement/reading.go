package measurement

import (
	"time"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/gateway"
)

// Reading is the projected state of one entity at one point in time, the
// unit handed to sinks such as the state store, exporters and publishers.
type Reading struct {
	MeterID    string             `json:"meter_id"`
	StableID   string             `json:"stable_id"`
	EntityID   string             `json:"entity_id"`
	Descriptor catalog.Descriptor `json:"descriptor"`
	Available  bool               `json:"available"`
	Value      Value              `json:"value"`
	Attributes map[string]any     `json:"attributes,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Readings projects every entity against snap. When the last poll failed
// every reading is unavailable but keeps the stale value for inspection.
func Readings(cat *catalog.Catalog, meterID string, entities []Entity, snap gateway.Snapshot, lastSuccess bool, ts time.Time) []Reading {
	out := make([]Reading, 0, len(entities))
	for _, e := range entities {
		v := Project(cat, e.Key(), snap)
		out = append(out, Reading{
			MeterID:    meterID,
			StableID:   e.StableID,
			EntityID:   e.EntityID,
			Descriptor: e.Descriptor,
			Available:  lastSuccess && v.Available,
			Value:      v,
			Attributes: Attributes(cat, e.Key(), snap),
			Timestamp:  ts,
		})
	}

	return out
}
