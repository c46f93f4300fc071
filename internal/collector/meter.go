package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/gateway"
	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/measurement"
)

var ErrNoSnapshot = errors.New("meter has no snapshot")

// MeterOptions carries the collaborators of a Meter. Zero values fall back
// to the built-in catalog, the HTTP client and the wall clock.
type MeterOptions struct {
	Catalog  *catalog.Catalog
	Fetcher  gateway.Fetcher
	Clock    Clock
	Logger   logger.Logger
	Registry EntityRegistry
	Sinks    []ReadingSink
}

// MeterStatus is a point-in-time summary of one meter.
type MeterStatus struct {
	MeterID       string                 `json:"meter_id"`
	Title         string                 `json:"title"`
	URL           string                 `json:"url"`
	State         string                 `json:"state"`
	Ready         bool                   `json:"ready"`
	LastSuccess   bool                   `json:"last_success"`
	FailureReason string                 `json:"failure_reason,omitempty"`
	LastUpdate    time.Time              `json:"last_update"`
	Entities      int                    `json:"entities"`
	Device        measurement.DeviceInfo `json:"device"`
}

// Meter is one configured gateway: its poller plus the entities created
// from the first snapshot. Every later snapshot is projected over those
// entities and handed to the sinks.
type Meter struct {
	cfg      MeterConfig
	cat      *catalog.Catalog
	poller   *Poller
	registry EntityRegistry
	sinks    []ReadingSink
	logger   logger.Logger

	mu       sync.RWMutex
	ctx      context.Context
	ready    bool
	title    string
	device   measurement.DeviceInfo
	entities []measurement.Entity
}

func NewMeter(cfg MeterConfig, opts MeterOptions) *Meter {
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	m := &Meter{
		cfg:      cfg,
		cat:      cat,
		poller:   NewPoller(cfg, opts.Fetcher, opts.Clock, log),
		registry: opts.Registry,
		sinks:    opts.Sinks,
		logger:   log,
		ctx:      context.Background(),
	}
	m.poller.AddListener(m)

	return m
}

// Setup starts polling and, on the first successful fetch, creates the
// entities and registers them. A failed first fetch returns an error
// wrapping ErrNotReady and leaves the meter stopped.
func (m *Meter) Setup(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	if err := m.poller.Start(ctx); err != nil {
		return err
	}

	snap, ok := m.poller.CurrentSnapshot()
	if !ok {
		_ = m.poller.Stop(ctx)
		return ErrNoSnapshot
	}

	id := measurement.Identity(snap)
	entities := measurement.Entities(m.cat, snap)
	device := measurement.Device(snap, m.cfg.Host, m.cfg.Port)
	title := id.Title()
	if m.cfg.Name != "" {
		title = m.cfg.Name
	}

	if m.registry != nil {
		err := m.registry.Register(ctx, Registration{
			MeterID:  m.cfg.MeterID,
			Title:    title,
			Host:     m.cfg.Host,
			Port:     m.cfg.Port,
			Device:   device,
			Entities: entities,
		})
		if err != nil {
			_ = m.poller.Stop(ctx)
			return fmt.Errorf("register meter %s: %w", m.cfg.MeterID, err)
		}
	}

	m.mu.Lock()
	m.ready = true
	m.title = title
	m.device = device
	m.entities = entities
	m.mu.Unlock()

	m.logger.Info().
		Str("meter_id", m.cfg.MeterID).
		Str("mac", id.MACAddress).
		Int("entities", len(entities)).
		Msg("Meter set up")

	m.dispatch(snap, m.poller.LastSuccess())

	return nil
}

// Teardown stops polling. Entities and the last snapshot stay readable.
func (m *Meter) Teardown(ctx context.Context) error {
	return m.poller.Stop(ctx)
}

func (m *Meter) OnSnapshotUpdated(_ string, snap gateway.Snapshot) {
	m.dispatch(snap, true)
}

func (m *Meter) OnPollFailed(_ string, _ string) {
	snap, _ := m.poller.CurrentSnapshot()
	m.dispatch(snap, false)
}

func (m *Meter) dispatch(snap gateway.Snapshot, lastSuccess bool) {
	m.mu.RLock()
	ready, ctx, entities := m.ready, m.ctx, m.entities
	m.mu.RUnlock()

	if !ready || len(m.sinks) == 0 {
		return
	}

	readings := measurement.Readings(m.cat, m.cfg.MeterID, entities, snap, lastSuccess, m.poller.LastUpdate())
	for _, r := range readings {
		if r.Value.Warning != nil {
			m.logger.Warn().Err(r.Value.Warning).Str("meter_id", m.cfg.MeterID).Msg("Numeric coercion failed")
		}
	}

	for _, s := range m.sinks {
		if err := s.HandleReadings(ctx, m.cfg.MeterID, readings); err != nil {
			m.logger.Error().Err(err).Str("meter_id", m.cfg.MeterID).Msg("Reading sink failed")
		}
	}
}

// Readings projects the current snapshot over the meter's entities.
func (m *Meter) Readings() []measurement.Reading {
	m.mu.RLock()
	entities := m.entities
	m.mu.RUnlock()

	snap, _ := m.poller.CurrentSnapshot()

	return measurement.Readings(m.cat, m.cfg.MeterID, entities, snap, m.poller.LastSuccess(), m.poller.LastUpdate())
}

// Entities returns the entities created at setup.
func (m *Meter) Entities() []measurement.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]measurement.Entity(nil), m.entities...)
}

func (m *Meter) Device() measurement.DeviceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.device
}

func (m *Meter) Status() MeterStatus {
	m.mu.RLock()
	st := MeterStatus{
		MeterID:  m.cfg.MeterID,
		Title:    m.title,
		Ready:    m.ready,
		Entities: len(m.entities),
		Device:   m.device,
	}
	m.mu.RUnlock()

	st.URL = m.poller.URL()
	st.State = m.poller.State().String()
	st.LastSuccess = m.poller.LastSuccess()
	st.FailureReason = m.poller.FailureReason()
	st.LastUpdate = m.poller.LastUpdate()

	return st
}

func (m *Meter) ID() string { return m.cfg.MeterID }

func (m *Meter) Config() MeterConfig { return m.cfg }

func (m *Meter) Catalog() *catalog.Catalog { return m.cat }

func (m *Meter) Poller() *Poller { return m.poller }
