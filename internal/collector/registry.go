package collector

import (
	"context"
	"sync"

	"smartmeter-poller/internal/measurement"
)

// MemoryRegistry keeps registrations in process. Entities already known
// under a stable id keep their first metadata.
type MemoryRegistry struct {
	mu       sync.RWMutex
	meters   map[string]Registration
	entities map[string]measurement.Entity
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		meters:   make(map[string]Registration),
		entities: make(map[string]measurement.Entity),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]measurement.Entity, 0, len(reg.Entities))
	for _, e := range reg.Entities {
		if old, ok := r.entities[e.StableID]; ok {
			kept = append(kept, old)
			continue
		}
		r.entities[e.StableID] = e
		kept = append(kept, e)
	}
	reg.Entities = kept
	r.meters[reg.MeterID] = reg

	return nil
}

// Meter returns the last registration of meterID.
func (r *MemoryRegistry) Meter(meterID string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.meters[meterID]

	return reg, ok
}

// Entity looks up an entity by stable id.
func (r *MemoryRegistry) Entity(stableID string) (measurement.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[stableID]

	return e, ok
}
